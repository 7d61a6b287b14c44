// File: internal/browser/diagnostics.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// CaptureDiagnostics snapshots the active page (screenshot, final URL, DOM)
// into dir, prefixing files with name. Capture failures are logged and
// skipped: diagnostics must never change a scenario's outcome.
func (d *Driver) CaptureDiagnostics(ctx context.Context, dir, name string) []string {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.logger.Warn("Could not create artifacts directory.", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	captureCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	page, err := d.session.ActivePage(captureCtx)
	if err != nil {
		d.logger.Warn("No active page for diagnostics.", zap.Error(err))
		return nil
	}

	runCtx, cancelRun := combineContext(page.Context(), captureCtx)
	defer cancelRun()

	var paths []string

	var shot []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		d.logger.Warn("Could not capture screenshot.", zap.Error(err))
	} else {
		p := filepath.Join(dir, name+".png")
		if err := os.WriteFile(p, shot, 0o644); err != nil {
			d.logger.Warn("Could not write screenshot.", zap.String("path", p), zap.Error(err))
		} else {
			paths = append(paths, p)
		}
	}

	var location, dom string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &dom, chromedp.ByQuery),
	); err != nil {
		d.logger.Warn("Could not capture final page state.", zap.Error(err))
		return paths
	}

	p := filepath.Join(dir, name+".html")
	content := fmt.Sprintf("<!-- url: %s -->\n%s", location, dom)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		d.logger.Warn("Could not write DOM snapshot.", zap.String("path", p), zap.Error(err))
	} else {
		paths = append(paths, p)
	}

	return paths
}
