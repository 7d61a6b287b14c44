// File: internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

// The engine's failure taxonomy. Every error surfaced to the scenario
// runner wraps exactly one of these sentinels so callers can classify
// failures with errors.Is without string matching.
var (
	// ErrEnvironment means the browser process or a session could not be
	// created. Fatal to the run that hit it.
	ErrEnvironment = errors.New("environment error")

	// ErrElementNotFound means no frame contained a match for the locator,
	// or the locator matched nothing within its frame.
	ErrElementNotFound = errors.New("element not found")

	// ErrAmbiguousIndex means the locator matched, but the requested match
	// index is out of range.
	ErrAmbiguousIndex = errors.New("locator index out of range")

	// ErrActionTimeout means the element never became actionable (visible,
	// enabled, stable) within the step timeout, or a fill did not stick.
	ErrActionTimeout = errors.New("action timed out")

	// ErrAssertionTimeout means the terminal expectation was never
	// satisfied within its timeout.
	ErrAssertionTimeout = errors.New("assertion timed out")
)

// NotFoundError reports which locator failed and where the scan looked.
type NotFoundError struct {
	Locator       string
	FramesScanned int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found for locator %q after scanning %d frame(s)", e.Locator, e.FramesScanned)
}

func (e *NotFoundError) Unwrap() error { return ErrElementNotFound }

// AmbiguousIndexError reports an index that exceeds the match count.
type AmbiguousIndexError struct {
	Locator string
	Index   int
	Matches int
}

func (e *AmbiguousIndexError) Error() string {
	return fmt.Sprintf("locator %q index %d out of range: %d match(es)", e.Locator, e.Index, e.Matches)
}

func (e *AmbiguousIndexError) Unwrap() error { return ErrAmbiguousIndex }

// retryable reports whether a failed action is worth re-running under the
// bounded retry policy. Environment failures and cancellations are not:
// the session is gone or the caller gave up.
func retryable(err error) bool {
	return errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrAmbiguousIndex) ||
		errors.Is(err, ErrActionTimeout)
}
