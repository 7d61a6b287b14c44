// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/browser"
	"github.com/xkilldash9x/flightcheck/internal/config"
)

// Driver is the scenario-facing surface of a browser session. Implemented
// by *browser.Driver; tests substitute fakes.
type Driver interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, loc browser.Locator, value string, opts browser.ActionOptions) error
	Click(ctx context.Context, loc browser.Locator, opts browser.ActionOptions) error
	IsVisible(ctx context.Context, loc browser.Locator) (bool, error)
	CaptureDiagnostics(ctx context.Context, dir, name string) []string
	Close(ctx context.Context)
}

// DriverFactory opens a fresh, isolated session for one scenario run.
type DriverFactory func(ctx context.Context) (Driver, error)

// Runner executes one scenario at a time against a session it acquires
// from the factory and always releases, whatever the outcome.
type Runner struct {
	cfg      config.RunnerConfig
	logger   *zap.Logger
	factory  DriverFactory
	asserter *Asserter
}

// NewRunner creates a Runner.
func NewRunner(cfg config.RunnerConfig, logger *zap.Logger, factory DriverFactory) *Runner {
	l := logger.Named("runner")
	return &Runner{
		cfg:      cfg,
		logger:   l,
		factory:  factory,
		asserter: NewAsserter(cfg.PollInterval, l),
	}
}

// Run executes the scenario and returns its immutable result. The session
// is closed exactly once on every exit path, including panics; teardown
// errors are logged by the driver and never surface here.
func (r *Runner) Run(ctx context.Context, sc Scenario) (result Result) {
	log := r.logger.With(zap.String("scenario", sc.Name))
	start := time.Now()
	result = Result{Scenario: sc.Name, StartedAt: start}

	driver, err := r.factory(ctx)
	if err != nil {
		log.Error("Could not open a browser session.", zap.Error(err))
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("session could not be created: %v", err)
		result.Environment = IsEnvironmentFailure(err)
		result.Duration = time.Since(start)
		return result
	}
	result.SessionID = driver.ID()
	log = log.With(zap.String("session_id", shortID(driver.ID())))

	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			// Teardown gets its own context so a cancelled run still
			// releases the browser.
			closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			driver.Close(closeCtx)
		})
	}
	defer closeSession()
	defer func() {
		if p := recover(); p != nil {
			log.Error("Scenario panicked.", zap.Any("panic", p))
			result.Status = StatusFailed
			result.Reason = fmt.Sprintf("internal error: %v", p)
			result.Duration = time.Since(start)
		}
	}()

	log.Info("Scenario started.", zap.Int("steps", len(sc.Steps)))

	for i, step := range sc.Steps {
		if err := r.execStep(ctx, driver, sc, step); err != nil {
			idx := i + 1
			result.Status = StatusFailed
			result.FailedStep = &idx
			result.Reason = fmt.Sprintf("step %d (%s) failed: %v", idx, step.Kind, err)
			result.Environment = IsEnvironmentFailure(err)
			result.Artifacts = driver.CaptureDiagnostics(ctx, r.cfg.ArtifactsDir, artifactName(sc.Name))
			result.Duration = time.Since(start)
			log.Warn("Scenario failed.", zap.Int("step", idx), zap.Error(err))
			return result
		}
	}

	if sc.Assert.Locator.Expr != "" {
		if err := r.checkAssertion(ctx, driver, sc.Assert); err != nil {
			result.Status = StatusFailed
			result.Reason = err.Error()
			result.Artifacts = driver.CaptureDiagnostics(ctx, r.cfg.ArtifactsDir, artifactName(sc.Name))
			result.Duration = time.Since(start)
			log.Warn("Scenario failed its terminal assertion.", zap.Error(err))
			return result
		}
	}

	result.Status = StatusPassed
	result.Duration = time.Since(start)
	log.Info("Scenario passed.", zap.Duration("duration", result.Duration))
	return result
}

func (r *Runner) execStep(ctx context.Context, driver Driver, sc Scenario, step Step) error {
	opts := browser.ActionOptions{
		Timeout: step.Timeout,
		Retries: r.cfg.Retries,
	}
	if step.Retries != nil {
		opts.Retries = *step.Retries
	}

	switch step.Kind {
	case StepNavigate:
		target, err := resolveURL(r.baseURL(sc), step.Target)
		if err != nil {
			return err
		}
		return driver.Navigate(ctx, target)

	case StepFill:
		return driver.Fill(ctx, step.Locator, step.Value, opts)

	case StepClick:
		return driver.Click(ctx, step.Locator, opts)

	case StepWait:
		select {
		case <-time.After(step.Duration):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case StepAssertVisible:
		return r.checkAssertion(ctx, driver, Assertion{Locator: step.Locator, Timeout: step.Timeout})

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) checkAssertion(ctx context.Context, driver Driver, a Assertion) error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = r.cfg.AssertionTimeout
	}
	probe := func(probeCtx context.Context) (bool, error) {
		return driver.IsVisible(probeCtx, a.Locator)
	}
	return r.asserter.AwaitVisible(ctx, a.Locator.String(), timeout, probe)
}

func (r *Runner) baseURL(sc Scenario) string {
	if sc.BaseURL != "" {
		return sc.BaseURL
	}
	return r.cfg.BaseURL
}

// resolveURL joins a step target with the base URL. Absolute targets pass
// through untouched; relative targets require a base.
func resolveURL(base, target string) (string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative navigation target %q needs a base URL", target)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	t, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid navigation target %q: %w", target, err)
	}
	return b.ResolveReference(t).String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// artifactName derives a filesystem-safe prefix from the scenario name.
func artifactName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped + "_" + time.Now().UTC().Format("20060102T150405")
}

// IsEnvironmentFailure reports whether a result failed because the
// environment (not the application under test) broke.
func IsEnvironmentFailure(err error) bool {
	return errors.Is(err, browser.ErrEnvironment)
}
