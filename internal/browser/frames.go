// File: internal/browser/frames.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

// Frame identifies one document (main or nested) within a page.
type Frame struct {
	ID    cdp.FrameID
	URL   string
	Depth int
}

// FrameResolver enumerates the live frame tree of a page and finds the
// frame hosting a locator. Results are computed fresh on every call: frames
// appear and disappear as the page mutates (third-party challenge widgets
// inject iframes mid-scenario).
type FrameResolver struct {
	cfg    config.RunnerConfig
	logger *zap.Logger
}

// NewFrameResolver creates a resolver with the runner's timing policy.
func NewFrameResolver(cfg config.RunnerConfig, logger *zap.Logger) *FrameResolver {
	return &FrameResolver{
		cfg:    cfg,
		logger: logger.Named("frames"),
	}
}

// ListFrames returns the page's frames, main document first, then nested
// frames in document order, bounded by the configured recursion depth.
func (fr *FrameResolver) ListFrames(ctx context.Context, page *Page) ([]Frame, error) {
	runCtx, cancel := combineContext(page.Context(), ctx)
	defer cancel()

	var tree *cdppage.FrameTree
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		var err error
		tree, err = cdppage.GetFrameTree().Do(cdpCtx)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch frame tree: %w", err)
	}
	return flattenFrameTree(tree, fr.cfg.MaxFrameDepth), nil
}

// flattenFrameTree walks the tree depth-first so children appear in
// document order directly after their parent. maxDepth 1 keeps only the
// main document.
func flattenFrameTree(tree *cdppage.FrameTree, maxDepth int) []Frame {
	if tree == nil || tree.Frame == nil {
		return nil
	}

	var out []Frame
	var walk func(node *cdppage.FrameTree, depth int)
	walk = func(node *cdppage.FrameTree, depth int) {
		if node == nil || node.Frame == nil || depth >= maxDepth {
			return
		}
		out = append(out, Frame{ID: node.Frame.ID, URL: node.Frame.URL, Depth: depth})
		for _, child := range node.ChildFrames {
			walk(child, depth+1)
		}
	}
	walk(tree, 0)
	return out
}

// FindFrameContaining scans frames in document order and returns the first
// whose document currently has a match for the locator. Each frame gets a
// short existence probe, small relative to the step timeout, so one dead
// frame cannot eat the whole step deadline. The first-match rule assumes the
// UI presents an interactive element in at most one live frame at a time.
func (fr *FrameResolver) FindFrameContaining(ctx context.Context, page *Page, loc Locator) (Frame, error) {
	frames, err := fr.ListFrames(ctx, page)
	if err != nil {
		return Frame{}, err
	}

	for _, frame := range frames {
		probeCtx, cancel := context.WithTimeout(ctx, fr.cfg.FrameProbeTimeout)
		count, err := countMatches(probeCtx, page, frame, loc, false)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return Frame{}, ctx.Err()
			}
			// Frames can detach mid-probe and cross-origin frames can refuse
			// the world; keep scanning.
			fr.logger.Debug("Frame probe failed.",
				zap.String("frame_url", frame.URL),
				zap.Int("depth", frame.Depth),
				zap.Error(err))
			continue
		}
		if count > 0 {
			return frame, nil
		}
	}

	return Frame{}, &NotFoundError{Locator: loc.String(), FramesScanned: len(frames)}
}

// probeVisible reports whether any visible match for the locator exists in
// any frame of the page. This is the assertion checker's probe.
func (fr *FrameResolver) probeVisible(ctx context.Context, page *Page, loc Locator) (bool, error) {
	frames, err := fr.ListFrames(ctx, page)
	if err != nil {
		return false, err
	}

	var lastErr error
	for _, frame := range frames {
		probeCtx, cancel := context.WithTimeout(ctx, fr.cfg.FrameProbeTimeout)
		count, err := countMatches(probeCtx, page, frame, loc, true)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			continue
		}
		if count > 0 {
			return true, nil
		}
	}

	if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
		return false, lastErr
	}
	return false, nil
}
