// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

// Session is one isolated browser process owned by exactly one scenario
// run. It tracks the page targets the browser opens (popups included) so
// steps always act against an explicit page handle instead of an ambient
// "current page".
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	cfg       *config.Config
	createdAt time.Time

	onClose func()

	mu       sync.Mutex
	isClosed bool
	// pageOrder holds page target IDs in order of first sighting, so the
	// most recently opened page is always last.
	pageOrder []target.ID
	pages     map[target.ID]*Page
}

// Page is an explicit handle to one top-level document within a session.
type Page struct {
	TargetID target.ID

	ctx    context.Context
	cancel context.CancelFunc
}

// Context exposes the page's chromedp context for action execution.
func (p *Page) Context() context.Context { return p.ctx }

func newSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(zap.String("session_id", id[:8])),
		cfg:       cfg,
		createdAt: time.Now(),
		onClose:   onClose,
		pages:     make(map[target.ID]*Page),
	}
}

// initialize materializes the browser process and its first tab, applies
// the viewport, and registers the initial page.
func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(initCtx,
		chromedp.EmulateViewport(int64(s.cfg.Browser.ViewportWidth), int64(s.cfg.Browser.ViewportHeight)),
	); err != nil {
		return fmt.Errorf("failed to initialize browser session: %w", err)
	}

	tgt := chromedp.FromContext(s.ctx).Target
	if tgt == nil {
		return fmt.Errorf("session has no attached target after initialization")
	}

	s.mu.Lock()
	s.pageOrder = append(s.pageOrder, tgt.TargetID)
	s.pages[tgt.TargetID] = &Page{TargetID: tgt.TargetID, ctx: s.ctx}
	s.mu.Unlock()

	s.logger.Debug("Browser session initialized.")
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// ActivePage re-resolves the current top-level document. Navigation or
// popups may change which document is current between steps, so the result
// is never cached by callers.
func (s *Session) ActivePage(ctx context.Context) (*Page, error) {
	queryCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}

	live := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		live[info.TargetID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil, fmt.Errorf("%w: session is closed", ErrEnvironment)
	}

	// Drop pages whose targets are gone, keep sighting order for the rest.
	order := s.pageOrder[:0]
	for _, id := range s.pageOrder {
		if live[id] {
			order = append(order, id)
			delete(live, id)
			continue
		}
		if p := s.pages[id]; p != nil && p.cancel != nil {
			p.cancel()
		}
		delete(s.pages, id)
	}
	s.pageOrder = order

	// Newly sighted targets (popups, OAuth windows) go to the back.
	for _, info := range infos {
		if info.Type == "page" && live[info.TargetID] {
			s.pageOrder = append(s.pageOrder, info.TargetID)
		}
	}

	if len(s.pageOrder) == 0 {
		return nil, fmt.Errorf("%w: session has no open pages", ErrEnvironment)
	}

	id := s.pageOrder[len(s.pageOrder)-1]
	page, ok := s.pages[id]
	if !ok {
		// Attach to the popup's existing target. The context is kept for
		// the page's lifetime; the page choice itself stays per-step.
		pageCtx, pageCancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		page = &Page{TargetID: id, ctx: pageCtx, cancel: pageCancel}
		s.pages[id] = page
		s.logger.Debug("Attached to new page target.", zap.String("target_id", string(id)))
	}
	return page, nil
}

// Navigate loads a URL in the given page and waits for it to settle. Frame
// and subresource load failures are tolerated; the terminal assertion is
// the arbiter of whether the page is usable.
func (s *Session) Navigate(ctx context.Context, page *Page, url string) error {
	navCtx, cancel := combineContext(page.ctx, ctx)
	defer cancel()
	navCtx, cancelTimeout := context.WithTimeout(navCtx, s.cfg.Runner.NavigationTimeout)
	defer cancelTimeout()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	// Best effort: external pages (OAuth providers, challenge widgets) may
	// never reach a conventional ready state.
	readyCtx, cancelReady := context.WithTimeout(navCtx, 3*time.Second)
	defer cancelReady()
	if err := chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		s.logger.Debug("Page did not report ready state.", zap.String("url", url), zap.Error(err))
	}

	select {
	case <-time.After(s.cfg.Runner.PostLoadWait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Close tears down the browser process. It is idempotent and never returns
// an error: teardown problems are logged so they cannot mask the scenario
// result.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}
	s.isClosed = true
	pages := s.pages
	s.pages = nil
	s.pageOrder = nil
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	for _, p := range pages {
		if p.cancel != nil {
			p.cancel()
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for the process to go away, bounded by the caller's deadline and
	// a hard cap, so a wedged browser cannot hang teardown.
	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()
	select {
	case <-s.ctx.Done():
		s.logger.Debug("Browser session closed gracefully.")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for browser session to close.", zap.Error(waitCtx.Err()))
	}

	if s.onClose != nil {
		s.onClose()
	}
}

// combineContext derives a context that is cancelled when either parent is.
// The session context carries the CDP connection; the caller context carries
// the step deadline.
func combineContext(session, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(session)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
