// File: internal/scenario/loader_test.go
package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flightcheck/internal/browser"
)

const loginScenario = `
name: login_success
description: Sign in with valid credentials.
steps:
  - navigate: /
  - fill:
      locator: css=input[type="email"]
      value: test1@jobmatch.ai
  - fill:
      locator: xpath=html/body/div/div/div/div[2]/form/div[2]/input
      value: TestPassword123!
  - wait: 2s
  - click: text=Sign In
assert:
  visible: text=Dashboard
  timeout: 30s
`

func TestParseFullScenario(t *testing.T) {
	sc, err := Parse([]byte(loginScenario))
	require.NoError(t, err)

	assert.Equal(t, "login_success", sc.Name)
	require.Len(t, sc.Steps, 5)

	assert.Equal(t, StepNavigate, sc.Steps[0].Kind)
	assert.Equal(t, "/", sc.Steps[0].Target)

	assert.Equal(t, StepFill, sc.Steps[1].Kind)
	assert.Equal(t, browser.ByCSS, sc.Steps[1].Locator.Kind)
	assert.Equal(t, "test1@jobmatch.ai", sc.Steps[1].Value)

	assert.Equal(t, browser.ByXPath, sc.Steps[2].Locator.Kind)

	assert.Equal(t, StepWait, sc.Steps[3].Kind)
	assert.Equal(t, 2*time.Second, sc.Steps[3].Duration)

	// Scalar shorthand for click.
	assert.Equal(t, StepClick, sc.Steps[4].Kind)
	assert.Equal(t, browser.ByText, sc.Steps[4].Locator.Kind)
	assert.Equal(t, "Sign In", sc.Steps[4].Locator.Expr)

	assert.Equal(t, browser.ByText, sc.Assert.Locator.Kind)
	assert.Equal(t, 30*time.Second, sc.Assert.Timeout)
}

func TestParseStepOverrides(t *testing.T) {
	sc, err := Parse([]byte(`
name: overrides
steps:
  - click:
      locator: css=button.primary
      index: 2
      timeout: 8s
      retries: 3
assert:
  visible: text=Done
`))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 1)

	st := sc.Steps[0]
	assert.Equal(t, 2, st.Locator.Index)
	assert.Equal(t, 8*time.Second, st.Timeout)
	require.NotNil(t, st.Retries)
	assert.Equal(t, 3, *st.Retries)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "steps:\n  - navigate: /\nassert:\n  visible: text=x\n",
			wantErr: "must have a name",
		},
		{
			name:    "no steps",
			yaml:    "name: empty\nassert:\n  visible: text=x\n",
			wantErr: "has no steps",
		},
		{
			name:    "no assertion",
			yaml:    "name: unchecked\nsteps:\n  - navigate: /\n",
			wantErr: "declares no assertion",
		},
		{
			name:    "fill without value",
			yaml:    "name: x\nsteps:\n  - fill: css=input\nassert:\n  visible: text=x\n",
			wantErr: "fill requires a value",
		},
		{
			name:    "unknown verb",
			yaml:    "name: x\nsteps:\n  - hover: css=a\nassert:\n  visible: text=x\n",
			wantErr: "unknown step verb",
		},
		{
			name:    "negative index",
			yaml:    "name: x\nsteps:\n  - click:\n      locator: css=a\n      index: -1\nassert:\n  visible: text=x\n",
			wantErr: "index must not be negative",
		},
		{
			name:    "bad wait duration",
			yaml:    "name: x\nsteps:\n  - wait: soon\nassert:\n  visible: text=x\n",
			wantErr: "invalid duration",
		},
		{
			name:    "step not a mapping",
			yaml:    "name: x\nsteps:\n  - navigate\nassert:\n  visible: text=x\n",
			wantErr: "single-key mapping",
		},
		{
			name:    "mapping without locator",
			yaml:    "name: x\nsteps:\n  - click:\n      index: 1\nassert:\n  visible: text=x\n",
			wantErr: "missing locator",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestAssertVisibleStepCountsAsAssertion(t *testing.T) {
	_, err := Parse([]byte(`
name: inline_assert
steps:
  - navigate: /
  - assert_visible: text=Welcome
`))
	require.NoError(t, err)
}

func writeScenarioFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDiscoverAndLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "b_second.yaml", "name: second\nsteps:\n  - navigate: /\nassert:\n  visible: text=x\n")
	writeScenarioFile(t, dir, "a_first.yml", "name: first\nsteps:\n  - navigate: /\nassert:\n  visible: text=x\n")
	writeScenarioFile(t, dir, "notes.txt", "not a scenario")

	scenarios, err := LoadAll([]string{dir})
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	// Directory entries load in lexical order.
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
	assert.NotEmpty(t, scenarios[0].SourcePath)
}

func TestLoadAllRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "one.yaml", "name: dup\nsteps:\n  - navigate: /\nassert:\n  visible: text=x\n")
	writeScenarioFile(t, dir, "two.yaml", "name: dup\nsteps:\n  - navigate: /\nassert:\n  visible: text=x\n")

	_, err := LoadAll([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate scenario name "dup"`)
}

func TestLoadShippedScenarios(t *testing.T) {
	scenarios, err := LoadAll([]string{filepath.Join("..", "..", "scenarios")})
	require.NoError(t, err)

	names := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		names[sc.Name] = true
	}
	for _, want := range []string{
		"login_success", "login_failure",
		"linkedin_import", "linkedin_auth_failure",
		"resume_optimization", "resume_preview",
		"job_search", "job_detail",
		"application_tracker", "subscription_upgrade",
		"account_settings", "network_failure_messages",
		"job_search_analytics", "bulk_status_update",
		"onboarding_metrics", "retention_metrics",
	} {
		assert.True(t, names[want], "missing shipped scenario %q", want)
	}
}

func TestDiscoverEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := Discover([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files found")
}
