// File: internal/scenario/assert.go
package scenario

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/browser"
)

// Probe checks once whether the expected condition currently holds. Probe
// errors are treated as "not yet": external pages may be mid-navigation
// when the probe lands.
type Probe func(ctx context.Context) (bool, error)

// Asserter decides scenario success by polling a probe until it holds or
// the timeout elapses. It is the sole decision point for a scenario: every
// step before it only exists to drive the application into the state the
// probe checks.
type Asserter struct {
	interval time.Duration
	logger   *zap.Logger
}

// NewAsserter creates an Asserter polling at the given interval.
func NewAsserter(interval time.Duration, logger *zap.Logger) *Asserter {
	return &Asserter{
		interval: interval,
		logger:   logger.Named("assert"),
	}
}

// AwaitVisible polls until the probe reports true. On timeout it fails no
// earlier than the timeout and no later than one poll interval past it,
// with a reason naming the unmet expectation.
func (a *Asserter) AwaitVisible(ctx context.Context, expectation string, timeout time.Duration, probe Probe) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	check := func() (bool, error) {
		// Each probe walks every frame and can stall on a slow page. Capping
		// it at the poll interval keeps the failure-window bound honest.
		probeCtx, cancel := context.WithTimeout(ctx, a.interval)
		ok, err := probe(probeCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			a.logger.Debug("Assertion probe errored; treating as not yet visible.",
				zap.String("expectation", expectation), zap.Error(err))
			return false, nil
		}
		return ok, nil
	}

	if ok, err := check(); err != nil {
		return err
	} else if ok {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("assertion %q aborted: %v: %w", expectation, ctx.Err(), browser.ErrAssertionTimeout)
		case <-deadline.C:
			return fmt.Errorf("expected %q to be visible within %s: %w", expectation, timeout, browser.ErrAssertionTimeout)
		case <-ticker.C:
			ok, err := check()
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
}
