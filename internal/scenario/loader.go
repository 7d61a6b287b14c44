// File: internal/scenario/loader.go
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/flightcheck/internal/browser"
)

// Scenario files are verb-keyed YAML:
//
//	name: login_success
//	description: Sign in with valid credentials.
//	steps:
//	  - navigate: /
//	  - fill:
//	      locator: css=input[type="email"]
//	      value: test1@jobmatch.ai
//	  - click: text=Sign In
//	  - wait: 2s
//	assert:
//	  visible: text=Dashboard
//	  timeout: 30s

type scenarioFile struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	BaseURL     string        `yaml:"base_url"`
	Steps       []stepNode    `yaml:"steps"`
	Assert      assertionNode `yaml:"assert"`
}

type assertionNode struct {
	Visible string   `yaml:"visible"`
	Index   int      `yaml:"index"`
	Timeout duration `yaml:"timeout"`
}

// duration parses YAML scalars like "2s" or "500ms". yaml.v3 only decodes
// time.Duration from raw integers, which scenario authors never write.
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: expected a duration like '2s'", node.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = duration(v)
	return nil
}

// stepNode decodes one verb-keyed step entry.
type stepNode struct {
	step Step
	line int
}

// actionNode is the long form shared by fill/click/assert_visible.
type actionNode struct {
	Locator string   `yaml:"locator"`
	Value   string   `yaml:"value"`
	Index   int      `yaml:"index"`
	Timeout duration `yaml:"timeout"`
	Retries *int     `yaml:"retries"`
}

func (s *stepNode) UnmarshalYAML(node *yaml.Node) error {
	s.line = node.Line
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: a step must be a single-key mapping like '- click: ...'", node.Line)
	}

	verb := node.Content[0].Value
	body := node.Content[1]

	switch StepKind(verb) {
	case StepNavigate:
		var target string
		if err := body.Decode(&target); err != nil {
			return fmt.Errorf("line %d: navigate expects a URL or path: %w", node.Line, err)
		}
		s.step = Step{Kind: StepNavigate, Target: target}
		return nil

	case StepWait:
		var d duration
		if err := body.Decode(&d); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		s.step = Step{Kind: StepWait, Duration: time.Duration(d)}
		return nil

	case StepFill, StepClick, StepAssertVisible:
		action, err := decodeAction(body)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", node.Line, verb, err)
		}
		loc, err := browser.ParseLocator(action.Locator)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", node.Line, verb, err)
		}
		if action.Index < 0 {
			return fmt.Errorf("line %d: %s: index must not be negative", node.Line, verb)
		}
		if action.Retries != nil && *action.Retries < 0 {
			return fmt.Errorf("line %d: %s: retries must not be negative", node.Line, verb)
		}
		if action.Timeout < 0 {
			return fmt.Errorf("line %d: %s: timeout must not be negative", node.Line, verb)
		}
		s.step = Step{
			Kind:    StepKind(verb),
			Locator: loc.WithIndex(action.Index),
			Value:   action.Value,
			Timeout: time.Duration(action.Timeout),
			Retries: action.Retries,
		}
		if s.step.Kind == StepFill && action.Value == "" {
			return fmt.Errorf("line %d: fill requires a value", node.Line)
		}
		return nil

	default:
		return fmt.Errorf("line %d: unknown step verb %q", node.Line, verb)
	}
}

// decodeAction accepts both the scalar shorthand ('- click: text=Sign In')
// and the full mapping form.
func decodeAction(body *yaml.Node) (actionNode, error) {
	var action actionNode
	if body.Kind == yaml.ScalarNode {
		action.Locator = body.Value
		return action, nil
	}
	if err := body.Decode(&action); err != nil {
		return actionNode{}, err
	}
	if strings.TrimSpace(action.Locator) == "" {
		return actionNode{}, fmt.Errorf("missing locator")
	}
	return action, nil
}

// Load parses and validates one scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	sc.SourcePath = path
	return sc, nil
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Scenario{}, err
	}

	sc := Scenario{
		Name:        strings.TrimSpace(file.Name),
		Description: strings.TrimSpace(file.Description),
		BaseURL:     strings.TrimSpace(file.BaseURL),
	}
	for _, n := range file.Steps {
		sc.Steps = append(sc.Steps, n.step)
	}

	if file.Assert.Visible != "" {
		loc, err := browser.ParseLocator(file.Assert.Visible)
		if err != nil {
			return Scenario{}, fmt.Errorf("assert: %w", err)
		}
		if file.Assert.Timeout < 0 {
			return Scenario{}, fmt.Errorf("assert: timeout must not be negative")
		}
		sc.Assert = Assertion{Locator: loc.WithIndex(file.Assert.Index), Timeout: time.Duration(file.Assert.Timeout)}
	}

	if err := validate(sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func validate(sc Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario must have a name")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}

	hasAssertion := sc.Assert.Locator.Expr != ""
	for _, st := range sc.Steps {
		if st.Kind == StepAssertVisible {
			hasAssertion = true
		}
	}
	if !hasAssertion {
		return fmt.Errorf("scenario %q declares no assertion; add an 'assert:' block or an assert_visible step", sc.Name)
	}
	return nil
}

// Discover expands files and directories into an ordered list of scenario
// file paths. Directories are scanned non-recursively for *.yaml and *.yml.
func Discover(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".yaml", ".yml":
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %v", paths)
	}
	return files, nil
}

// LoadAll loads every discovered scenario and rejects duplicate names,
// which would make batch results ambiguous.
func LoadAll(paths []string) ([]Scenario, error) {
	files, err := Discover(paths)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(files))
	scenarios := make([]Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, f)
		}
		seen[sc.Name] = f
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
