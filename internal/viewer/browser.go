// internal/viewer/browser.go
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	naverrors "github.com/valpere/docnav/internal/errors"
	"github.com/valpere/docnav/internal/navigator"
)

// bindingName is the CDP binding the bootstrap script reports through
const bindingName = "docnavSignal"

// apiSlot holds the resolved SDK API object inside the page
const apiSlot = "window.__docnavAPI"

// BrowserHandle evaluates SDK calls against the API object stored in the
// page by the session's accessor probe.
type BrowserHandle struct {
	ctx         context.Context // chromedp target context
	callTimeout time.Duration
}

var _ navigator.Handle = (*BrowserHandle)(nil)

// callResult is the envelope every evaluated SDK call returns
type callResult struct {
	Missing bool            `json:"missing"`
	Value   json.RawMessage `json:"value"`
}

// Capabilities reports which navigation methods the API object defines
func (h *BrowserHandle) Capabilities(ctx context.Context) (navigator.CapabilitySet, error) {
	names := make([]string, len(navigator.AllCapabilities))
	for i, c := range navigator.AllCapabilities {
		names[i] = string(c)
	}
	list, _ := json.Marshal(names)

	expr := fmt.Sprintf(`(() => {
  const a = %s;
  if (!a) { throw new Error('SDK API object not resolved'); }
  return %s.filter((n) => typeof a[n] === 'function');
})()`, apiSlot, list)

	var present []string
	if err := h.eval(ctx, expr, &present); err != nil {
		return nil, err
	}
	caps := make([]navigator.Capability, len(present))
	for i, n := range present {
		caps[i] = navigator.Capability(n)
	}
	return navigator.NewCapabilitySet(caps...), nil
}

// CurrentLocation calls getCurrentLocation
func (h *BrowserHandle) CurrentLocation(ctx context.Context) (navigator.Location, error) {
	raw, err := h.call(ctx, navigator.CapGetCurrentLocation)
	if err != nil || isNull(raw) {
		return nil, err
	}
	var loc navigator.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("getCurrentLocation returned %s: %w", raw, err)
	}
	return loc, nil
}

// GotoLocation calls gotoLocation with the JSON-encoded argument
func (h *BrowserHandle) GotoLocation(ctx context.Context, arg any) error {
	_, err := h.call(ctx, navigator.CapGotoLocation, arg)
	return err
}

// CurrentPage calls getCurrentPage
func (h *BrowserHandle) CurrentPage(ctx context.Context) (int, error) {
	raw, err := h.call(ctx, navigator.CapGetCurrentPage)
	if err != nil {
		return 0, err
	}
	return decodeInt(raw)
}

// Metadata calls getPDFMetadata
func (h *BrowserHandle) Metadata(ctx context.Context) (navigator.Metadata, error) {
	raw, err := h.call(ctx, navigator.CapGetPDFMetadata)
	if err != nil {
		return navigator.Metadata{}, err
	}
	var meta struct {
		NumPages json.RawMessage `json:"numPages"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return navigator.Metadata{}, fmt.Errorf("getPDFMetadata returned %s: %w", raw, err)
	}
	n, err := decodeInt(meta.NumPages)
	if err != nil {
		return navigator.Metadata{}, fmt.Errorf("numPages: %w", err)
	}
	return navigator.Metadata{NumPages: n}, nil
}

// call invokes an API method, awaiting a returned promise
func (h *BrowserHandle) call(ctx context.Context, c navigator.Capability, args ...any) (json.RawMessage, error) {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s argument: %w", c, err)
		}
		encoded[i] = string(b)
	}

	expr := fmt.Sprintf(`(async () => {
  const a = %s;
  if (!a || typeof a[%q] !== 'function') { return { missing: true }; }
  const v = await a[%q](%s);
  return { value: v === undefined ? null : v };
})()`, apiSlot, c, c, strings.Join(encoded, ", "))

	var res callResult
	if err := h.eval(ctx, expr, &res); err != nil {
		return nil, fmt.Errorf("%s rejected: %w", c, err)
	}
	if res.Missing {
		return nil, fmt.Errorf("%s: %w", c, naverrors.ErrCapabilityMissing)
	}
	return res.Value, nil
}

// eval runs expr on the target, bounded by both ctx and the call timeout
func (h *BrowserHandle) eval(ctx context.Context, expr string, out any) error {
	return evaluate(ctx, h.ctx, h.callTimeout, expr, out)
}

func evaluate(ctx, target context.Context, timeout time.Duration, expr string, out any) error {
	runCtx, cancel := context.WithTimeout(target, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, chromedp.Evaluate(expr, out, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// BrowserSimulator types the target page into the viewer's page-number
// input and presses Enter.
type BrowserSimulator struct {
	ctx         context.Context
	selector    string
	callTimeout time.Duration
	logger      *zap.Logger
}

var _ navigator.Simulator = (*BrowserSimulator)(nil)

// Simulate performs the UI fallback for a one-based page
func (s *BrowserSimulator) Simulate(ctx context.Context, page int) error {
	var markup string
	if err := s.run(ctx, chromedp.OuterHTML(s.selector, &markup, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to read viewer markup: %w", err)
	}

	candidates, err := RankPageInputs(markup)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no page input under %s: %w", s.selector, naverrors.ErrCapabilityMissing)
	}
	best := candidates[0]
	s.logger.Debug("Simulating page input",
		zap.Int("page", page),
		zap.String("input", best.Descriptor),
		zap.Int("score", best.Score))

	sel, _ := json.Marshal(s.selector)
	expr := fmt.Sprintf(`(() => {
  const root = document.querySelector(%s);
  const el = root && root.querySelectorAll('input')[%d];
  if (!el) { return false; }
  el.focus();
  const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value').set;
  setter.call(el, %q);
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`, sel, best.Index, fmt.Sprint(page))

	var focused bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &focused)); err != nil {
		return fmt.Errorf("failed to fill page input: %w", err)
	}
	if !focused {
		return fmt.Errorf("page input %s disappeared", best.Descriptor)
	}

	keyDown := input.DispatchKeyEvent(input.KeyDown).
		WithKey("Enter").
		WithCode("Enter").
		WithText("\r").
		WithWindowsVirtualKeyCode(13).
		WithNativeVirtualKeyCode(13)
	keyUp := input.DispatchKeyEvent(input.KeyUp).
		WithKey("Enter").
		WithCode("Enter").
		WithWindowsVirtualKeyCode(13).
		WithNativeVirtualKeyCode(13)
	return s.run(ctx, keyDown, keyUp)
}

func (s *BrowserSimulator) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("value is undefined")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("value %s is not a number", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int(f), nil
}
