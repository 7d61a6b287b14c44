// File: internal/scenario/types.go
package scenario

import (
	"time"

	"github.com/xkilldash9x/flightcheck/internal/browser"
)

// StepKind discriminates the step variants.
type StepKind string

const (
	StepNavigate      StepKind = "navigate"
	StepFill          StepKind = "fill"
	StepClick         StepKind = "click"
	StepWait          StepKind = "wait"
	StepAssertVisible StepKind = "assert_visible"
)

// Step is one atomic scenario instruction. Steps are immutable once loaded
// and execute strictly in sequence.
type Step struct {
	Kind StepKind

	// Target is the navigation destination (absolute, or relative to the
	// scenario's base URL). Navigate only.
	Target string
	// Locator identifies the element for fill, click, and assert_visible.
	Locator browser.Locator
	// Value is the input for fill.
	Value string
	// Duration is the pause length for wait.
	Duration time.Duration

	// Timeout overrides the runner's default for this step. Zero keeps the
	// default.
	Timeout time.Duration
	// Retries overrides the runner's default bounded-retry count. Nil keeps
	// the default.
	Retries *int
}

// Assertion is the terminal expectation deciding scenario success.
type Assertion struct {
	Locator browser.Locator
	// Timeout bounds the polling wait. Zero keeps the runner's default.
	Timeout time.Duration
}

// Scenario is an ordered list of steps plus a terminal assertion.
type Scenario struct {
	Name        string
	Description string
	// BaseURL overrides the runner's base URL for this scenario.
	BaseURL string
	// SourcePath records where the scenario was loaded from.
	SourcePath string

	Steps  []Step
	Assert Assertion
}

// Status is the binary outcome of a scenario run. There is no partial
// success.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Result captures the outcome of one scenario run. It is created when the
// run finishes and never mutated afterwards.
type Result struct {
	Scenario string `json:"scenario"`
	Status   Status `json:"status"`
	// FailedStep is the 1-based index of the failing step, nil when the
	// scenario passed or failed only its terminal assertion.
	FailedStep *int   `json:"failed_step,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// Environment marks failures of the harness or browser rather than
	// the application under test, such as a session that never opened.
	Environment bool          `json:"environment,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	// Artifacts lists diagnostic files captured on failure.
	Artifacts []string `json:"artifacts,omitempty"`
}

// Passed reports whether the run succeeded.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// Summary aggregates a batch of results into an overall count.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Summarize computes the batch summary for a set of results.
func Summarize(results []Result, duration time.Duration) Summary {
	s := Summary{Total: len(results), Duration: duration}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}
