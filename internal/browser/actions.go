// File: internal/browser/actions.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

// Executor performs single user actions against resolved elements,
// enforcing per-action timeouts and a bounded settle delay. It verifies its
// own post-conditions for Fill; navigation and other side effects of Click
// are deliberately left to the assertion checker.
type Executor struct {
	cfg    config.RunnerConfig
	logger *zap.Logger
}

// NewExecutor creates an Executor with the runner's timing policy.
func NewExecutor(cfg config.RunnerConfig, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// settle applies the fixed pre-action wait that absorbs animation and
// re-render races. A pragmatic trade-off between flakiness and runtime, not
// a correctness guarantee.
func (e *Executor) settle(ctx context.Context) error {
	select {
	case <-time.After(e.cfg.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type elementState struct {
	Status string  `json:"status"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
}

const stateJS = `function() {
	const el = this;
	if (!el.isConnected) return {status: 'detached'};
	el.scrollIntoView({block: 'center', inline: 'center'});
	const r = el.getBoundingClientRect();
	if (r.width <= 0 || r.height <= 0) return {status: 'zero-size'};
	const s = window.getComputedStyle(el);
	if (s.visibility === 'hidden' || s.display === 'none') return {status: 'hidden'};
	if (el.disabled) return {status: 'disabled'};
	return {status: 'ok', x: r.x, y: r.y, w: r.width, h: r.height};
}`

// waitActionable polls until the element is visible, enabled, and its
// geometry has stopped moving, or the context deadline fires.
func (e *Executor) waitActionable(ctx context.Context, page *Page, el *element) (elementState, error) {
	var prev *elementState
	for {
		state, err := e.elementState(ctx, page, el)
		if err == nil && state.Status == "ok" {
			if prev != nil && *prev == state {
				return state, nil
			}
			prev = &state
		} else {
			prev = nil
			if err != nil {
				e.logger.Debug("Actionability probe failed.", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			status := "unknown"
			if prev != nil {
				status = prev.Status
			} else if err == nil {
				status = state.Status
			}
			return elementState{}, fmt.Errorf("element not actionable (last state: %s): %w", status, ErrActionTimeout)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (e *Executor) elementState(ctx context.Context, page *Page, el *element) (elementState, error) {
	obj, err := e.callOn(ctx, page, el, stateJS, true)
	if err != nil {
		return elementState{}, err
	}
	var state elementState
	if obj == nil || obj.Value == nil {
		return elementState{}, fmt.Errorf("state probe returned no value")
	}
	if err := json.Unmarshal(obj.Value, &state); err != nil {
		return elementState{}, fmt.Errorf("state probe returned %q: %w", string(obj.Value), err)
	}
	return state, nil
}

// callOn invokes a function declaration with the element as `this`.
func (e *Executor) callOn(ctx context.Context, page *Page, el *element, decl string, byValue bool) (*cdpruntime.RemoteObject, error) {
	runCtx, cancel := combineContext(page.Context(), ctx)
	defer cancel()

	var obj *cdpruntime.RemoteObject
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		result, exc, err := cdpruntime.CallFunctionOn(decl).
			WithObjectID(el.objectID).
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

// Fill clears the element and sets its value, then verifies the value
// stuck. The native setter plus synthetic input/change events keeps
// framework-managed inputs (React and friends) in sync.
func (e *Executor) Fill(ctx context.Context, page *Page, el *element, value string) error {
	if err := e.settle(ctx); err != nil {
		return classify(err)
	}
	if _, err := e.waitActionable(ctx, page, el); err != nil {
		return err
	}

	decl := fmt.Sprintf(`function() {
		const el = this;
		const value = %s;
		el.focus();
		if (el instanceof HTMLInputElement || el instanceof HTMLTextAreaElement) {
			const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			const desc = Object.getOwnPropertyDescriptor(proto, 'value');
			if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return el.value;
		}
		if (el.isContentEditable) {
			el.textContent = value;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			return el.textContent;
		}
		return null;
	}`, jsString(value))

	obj, err := e.callOn(ctx, page, el, decl, true)
	if err != nil {
		return classify(err)
	}

	var got *string
	if obj != nil && obj.Value != nil {
		if err := json.Unmarshal(obj.Value, &got); err != nil {
			return fmt.Errorf("fill verification returned %q: %w", string(obj.Value), err)
		}
	}
	if got == nil {
		return fmt.Errorf("element is not fillable: %w", ErrActionTimeout)
	}
	if *got != value {
		return fmt.Errorf("fill did not stick (want %q, got %q): %w", value, *got, ErrActionTimeout)
	}
	return nil
}

const clickPointJS = `function() {
	const el = this;
	const r = el.getBoundingClientRect();
	let x = r.x + r.width / 2;
	let y = r.y + r.height / 2;
	try {
		let w = el.ownerDocument.defaultView;
		while (w && w.frameElement) {
			const fr = w.frameElement.getBoundingClientRect();
			x += fr.x;
			y += fr.y;
			w = w.parent;
		}
	} catch (err) {
		// Cross-origin ancestor: no page-level coordinates available.
		return {ok: false};
	}
	return {ok: true, x: x, y: y};
}`

// Click dispatches a single click at the element's center. It does not
// verify navigation or other side effects. Cross-origin frames hide the
// ancestor geometry needed for a trusted mouse event, so those elements get
// a synthetic click() instead.
func (e *Executor) Click(ctx context.Context, page *Page, el *element) error {
	if err := e.settle(ctx); err != nil {
		return classify(err)
	}
	if _, err := e.waitActionable(ctx, page, el); err != nil {
		return err
	}

	obj, err := e.callOn(ctx, page, el, clickPointJS, true)
	if err != nil {
		return classify(err)
	}

	var point struct {
		OK bool    `json:"ok"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}
	if obj != nil && obj.Value != nil {
		if err := json.Unmarshal(obj.Value, &point); err != nil {
			return fmt.Errorf("click point probe returned %q: %w", string(obj.Value), err)
		}
	}

	if !point.OK {
		_, err := e.callOn(ctx, page, el, `function() { this.click(); }`, true)
		return classify(err)
	}

	runCtx, cancel := combineContext(page.Context(), ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.MouseClickXY(point.X, point.Y)); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps transport-level failures onto the engine taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, ErrActionTimeout)
	}
	return err
}

// jsString renders a Go string as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
