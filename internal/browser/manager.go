// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

// Manager owns the lifecycle of browser processes. Each session it hands
// out is backed by its own process, so scenarios never share cookies,
// storage, or cache.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	// allocatorCtx manages process allocation. Session contexts derive from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager prepares the allocator and verifies a browser can actually be
// launched in this environment. A failure here is fatal to the whole run.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	if err := m.launchAllocator(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvironment, err)
	}
	return m, nil
}

// launchAllocator builds allocator options and confirms the browser binary
// starts and responds before any scenario depends on it.
func (m *Manager) launchAllocator(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	opts := m.buildAllocatorOptions()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Probe with a throwaway context so a broken environment fails fast
	// instead of failing the first scenario.
	probeCtx, cancelProbe := context.WithTimeout(allocCtx, 30*time.Second)
	probeCtx, cancelProbeCtx := chromedp.NewContext(probeCtx)
	defer cancelProbeCtx()
	defer cancelProbe()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles process flags from the configuration.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.Browser.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Browser.DisableGPU),
		chromedp.WindowSize(m.cfg.Browser.ViewportWidth, m.cfg.Browser.ViewportHeight),
	)

	// Custom arguments from the config file ("--flag" or "--flag=value").
	for _, arg := range m.cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")

		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// NewSession launches a fresh, fully isolated browser process and returns
// the session that owns it. Callers must pair every NewSession with exactly
// one Close.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	sessionCtx, cancel := chromedp.NewContext(m.allocatorCtx)

	// Track before initialize so the error-path Close below balances it.
	m.wg.Add(1)
	s := newSession(sessionCtx, cancel, m.cfg, m.logger, m.wg.Done)

	if err := s.initialize(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrEnvironment, err)
	}
	return s, nil
}

// Shutdown waits for active sessions to finish, then terminates all browser
// processes. It never reports session-level errors; those belong to the
// scenarios that owned the sessions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down browser processes...")
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
