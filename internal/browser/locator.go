// File: internal/browser/locator.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LocatorKind selects the matching strategy for a locator.
type LocatorKind string

const (
	// ByCSS matches with document.querySelectorAll.
	ByCSS LocatorKind = "css"
	// ByXPath matches with document.evaluate. Expressions without a leading
	// slash (e.g. "html/body/div[2]/input") are evaluated relative to the
	// document, the form the recorded scenarios use.
	ByXPath LocatorKind = "xpath"
	// ByText matches the deepest elements whose text contains the needle.
	ByText LocatorKind = "text"
)

// Locator is a declarative, frame-agnostic reference to an element plus a
// match index. Resolution always re-queries the live document; a Locator
// never holds a handle.
type Locator struct {
	Kind  LocatorKind
	Expr  string
	Index int
}

// ParseLocator parses the scenario-file locator syntax: an optional
// "css=" / "xpath=" / "text=" prefix followed by the expression. Bare
// strings starting with "/" or "html/" are treated as XPath, anything else
// as CSS.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	switch {
	case strings.HasPrefix(s, "css="):
		return mustExpr(ByCSS, strings.TrimPrefix(s, "css="))
	case strings.HasPrefix(s, "xpath="):
		return mustExpr(ByXPath, strings.TrimPrefix(s, "xpath="))
	case strings.HasPrefix(s, "text="):
		return mustExpr(ByText, strings.TrimPrefix(s, "text="))
	case strings.HasPrefix(s, "/") || strings.HasPrefix(s, "html/"):
		return Locator{Kind: ByXPath, Expr: s}, nil
	default:
		return Locator{Kind: ByCSS, Expr: s}, nil
	}
}

func mustExpr(kind LocatorKind, expr string) (Locator, error) {
	if strings.TrimSpace(expr) == "" {
		return Locator{}, fmt.Errorf("locator %q has an empty expression", kind)
	}
	return Locator{Kind: kind, Expr: expr}, nil
}

// WithIndex returns a copy of the locator selecting the n-th match.
func (l Locator) WithIndex(n int) Locator {
	l.Index = n
	return l
}

// String renders the locator in scenario-file syntax for diagnostics.
func (l Locator) String() string {
	if l.Index > 0 {
		return fmt.Sprintf("%s=%s [%d]", l.Kind, l.Expr, l.Index)
	}
	return fmt.Sprintf("%s=%s", l.Kind, l.Expr)
}

// matchesJS returns a JS block that binds `matches` to the ordered array of
// elements the locator selects within the current document.
func (l Locator) matchesJS() string {
	expr := jsString(l.Expr)
	switch l.Kind {
	case ByXPath:
		return fmt.Sprintf(`
			const matches = [];
			const snap = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < snap.snapshotLength; i++) {
				const n = snap.snapshotItem(i);
				if (n && n.nodeType === Node.ELEMENT_NODE) matches.push(n);
			}`, expr)
	case ByText:
		return fmt.Sprintf(`
			const needle = %s;
			const hits = Array.from(document.querySelectorAll('*'))
				.filter(el => (el.textContent || '').includes(needle));
			const matches = hits.filter(el => !hits.some(o => o !== el && el.contains(o)));`, expr)
	default:
		return fmt.Sprintf(`const matches = Array.from(document.querySelectorAll(%s));`, expr)
	}
}

const visibleJS = `
	const isVisible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return false;
		const s = window.getComputedStyle(el);
		return s.visibility !== 'hidden' && s.display !== 'none' && s.opacity !== '0';
	};`

// element is a resolved, currently-attached handle. It is single-use: the
// document may re-render at any time, so callers re-resolve instead of
// keeping one around.
type element struct {
	objectID cdpruntime.RemoteObjectID
}

// isolatedWorld creates a fresh execution context for the frame. Worlds are
// deliberately not cached: a navigation invalidates them silently.
func isolatedWorld(ctx context.Context, page *Page, frameID cdp.FrameID) (cdpruntime.ExecutionContextID, error) {
	runCtx, cancel := combineContext(page.Context(), ctx)
	defer cancel()

	var worldID cdpruntime.ExecutionContextID
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		var err error
		worldID, err = cdppage.CreateIsolatedWorld(frameID).WithWorldName("flightcheck").Do(cdpCtx)
		return err
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to create isolated world for frame: %w", err)
	}
	return worldID, nil
}

// evalInFrame evaluates an expression inside the frame's isolated world.
func evalInFrame(ctx context.Context, page *Page, frameID cdp.FrameID, expr string, byValue bool) (*cdpruntime.RemoteObject, error) {
	worldID, err := isolatedWorld(ctx, page, frameID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := combineContext(page.Context(), ctx)
	defer cancel()

	var obj *cdpruntime.RemoteObject
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		result, exc, err := cdpruntime.Evaluate(expr).
			WithContextID(worldID).
			WithReturnByValue(byValue).
			Do(cdpCtx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script threw: %s", exc.Text)
		}
		obj = result
		return nil
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return obj, nil
}

// countMatches probes a frame for the locator and returns the match count.
// With visibleOnly set, hidden matches do not count.
func countMatches(ctx context.Context, page *Page, frame Frame, loc Locator, visibleOnly bool) (int, error) {
	filter := "matches.length"
	if visibleOnly {
		filter = "matches.filter(isVisible).length"
	}
	script := fmt.Sprintf(`(() => { %s %s return %s; })()`, visibleJS, loc.matchesJS(), filter)

	obj, err := evalInFrame(ctx, page, frame.ID, script, true)
	if err != nil {
		return 0, err
	}

	var count int
	if obj == nil || obj.Value == nil {
		return 0, fmt.Errorf("count probe returned no value")
	}
	if err := json.Unmarshal(obj.Value, &count); err != nil {
		return 0, fmt.Errorf("count probe returned %q: %w", string(obj.Value), err)
	}
	return count, nil
}

// resolveInFrame maps the locator to a concrete element handle in the given
// frame. It re-queries the live frame on every call; the document may have
// re-rendered since the existence probe.
func resolveInFrame(ctx context.Context, page *Page, frame Frame, loc Locator) (*element, error) {
	count, err := countMatches(ctx, page, frame, loc, false)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &NotFoundError{Locator: loc.String(), FramesScanned: 1}
	}
	if loc.Index >= count {
		return nil, &AmbiguousIndexError{Locator: loc.String(), Index: loc.Index, Matches: count}
	}

	script := fmt.Sprintf(`(() => { %s return matches[%d]; })()`, loc.matchesJS(), loc.Index)
	obj, err := evalInFrame(ctx, page, frame.ID, script, false)
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.ObjectID == "" {
		// The match disappeared between the count and the pick.
		return nil, &NotFoundError{Locator: loc.String(), FramesScanned: 1}
	}
	return &element{objectID: obj.ObjectID}, nil
}
