// File: internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

// ActionOptions carries the per-step policy for one locate+act invocation.
type ActionOptions struct {
	// Timeout bounds the whole attempt, frame scan included.
	Timeout time.Duration
	// Retries re-runs locate+act on retryable failures. Zero means a single
	// attempt. Retry is a declared per-step configuration, never an
	// implicit engine policy.
	Retries int
}

// Driver executes user actions against one session. Every action
// re-resolves the active page, the hosting frame, and the element, so a
// re-render between steps (or mid-retry) can never leave it holding a
// stale handle.
type Driver struct {
	session *Session
	frames  *FrameResolver
	exec    *Executor
	cfg     config.RunnerConfig
	logger  *zap.Logger
}

// NewDriver wires a driver around an open session.
func NewDriver(session *Session, cfg config.RunnerConfig, logger *zap.Logger) *Driver {
	l := logger.With(zap.String("session_id", session.ID()[:8]))
	return &Driver{
		session: session,
		frames:  NewFrameResolver(cfg, l),
		exec:    NewExecutor(cfg, l),
		cfg:     cfg,
		logger:  l,
	}
}

// ID returns the underlying session's identifier.
func (d *Driver) ID() string { return d.session.ID() }

// Navigate loads the URL in the currently active page.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	page, err := d.session.ActivePage(ctx)
	if err != nil {
		return err
	}
	return d.session.Navigate(ctx, page, url)
}

// Fill locates the element and replaces its value.
func (d *Driver) Fill(ctx context.Context, loc Locator, value string, opts ActionOptions) error {
	return d.perform(ctx, loc, opts, func(attemptCtx context.Context, page *Page, el *element) error {
		return d.exec.Fill(attemptCtx, page, el, value)
	})
}

// Click locates the element and dispatches a single click.
func (d *Driver) Click(ctx context.Context, loc Locator, opts ActionOptions) error {
	return d.perform(ctx, loc, opts, func(attemptCtx context.Context, page *Page, el *element) error {
		return d.exec.Click(attemptCtx, page, el)
	})
}

// IsVisible reports whether any visible match for the locator exists in any
// frame of the active page. This is the probe the assertion checker polls.
func (d *Driver) IsVisible(ctx context.Context, loc Locator) (bool, error) {
	page, err := d.session.ActivePage(ctx)
	if err != nil {
		return false, err
	}
	return d.frames.probeVisible(ctx, page, loc)
}

// Close releases the session. Idempotent; never masks a scenario result.
func (d *Driver) Close(ctx context.Context) {
	d.session.Close(ctx)
}

// perform runs one locate+act with the bounded retry policy. Each attempt
// re-resolves page, frame, and element from scratch.
func (d *Driver) perform(ctx context.Context, loc Locator, opts ActionOptions, act func(context.Context, *Page, *element) error) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}

	attempts := opts.Retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d.logger.Debug("Retrying action.",
				zap.String("locator", loc.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			select {
			case <-time.After(d.cfg.SettleDelay):
			case <-ctx.Done():
				return fmt.Errorf("%v: %w", ctx.Err(), ErrActionTimeout)
			}
		}

		lastErr = d.attempt(ctx, timeout, loc, act)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (d *Driver) attempt(ctx context.Context, timeout time.Duration, loc Locator, act func(context.Context, *Page, *element) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := d.session.ActivePage(attemptCtx)
	if err != nil {
		return err
	}

	frame, err := d.frames.FindFrameContaining(attemptCtx, page, loc)
	if err != nil {
		return err
	}

	el, err := resolveInFrame(attemptCtx, page, frame, loc)
	if err != nil {
		return classify(err)
	}

	return act(attemptCtx, page, el)
}
