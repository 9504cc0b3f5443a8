// internal/viewer/scripted.go
package viewer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	naverrors "github.com/valpere/docnav/internal/errors"
	"github.com/valpere/docnav/internal/navigator"
)

// ReadinessSink receives readiness events from an adapter. *navigator.Resolver
// satisfies it.
type ReadinessSink interface {
	MarkAPIHandleAvailable(h navigator.Handle)
	MarkReadySignalObserved()
}

// ScriptedOptions configures a ScriptedHandle
type ScriptedOptions struct {
	// Name labels the script in stack traces and logs
	Name string
	// APIExpression is evaluated after the script runs when the script did
	// not register its API through docnav.register
	APIExpression string
	Sink          ReadinessSink
	Logger        *zap.Logger
}

// prelude is installed before the SDK script. An SDK build reports its API
// with docnav.register(apiOrPromise) and render completion with
// docnav.signal('rendered'); docnav.onPageInput(fn) installs the handler
// used by the UI fallback.
const prelude = `
var window = globalThis;
var self = globalThis;
docnav.register = function (v) {
  Promise.resolve(v).then(function (api) { docnav._setAPI(api); });
};
`

// ScriptedHandle hosts an SDK build inside a goja runtime and exposes its
// API object as a navigator.Handle.
type ScriptedHandle struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	name      string
	apiExpr   string
	api       *goja.Object
	pageInput goja.Callable
	closed    bool

	// wantAPI defers re-evaluating the accessor until the running script
	// returns
	wantAPI bool

	sink   ReadinessSink
	logger *zap.Logger

	// notifications raised while the VM lock is held are delivered after it
	// is released
	pending []func()
}

var (
	_ navigator.Handle    = (*ScriptedHandle)(nil)
	_ navigator.Simulator = (*ScriptedHandle)(nil)
)

// NewScriptedHandle creates a runtime with the docnav bridge installed
func NewScriptedHandle(opts ScriptedOptions) (*ScriptedHandle, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "sdk.js"
	}

	s := &ScriptedHandle{
		vm:      goja.New(),
		name:    opts.Name,
		apiExpr: opts.APIExpression,
		sink:    opts.Sink,
		logger:  opts.Logger.With(zap.String("script", opts.Name)),
	}
	if err := s.install(); err != nil {
		return nil, fmt.Errorf("failed to install bridge: %w", err)
	}
	return s, nil
}

// LoadScriptFile reads and runs an SDK build from disk
func LoadScriptFile(ctx context.Context, path string, opts ScriptedOptions) (*ScriptedHandle, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	s, err := NewScriptedHandle(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx, string(src)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ScriptedHandle) install() error {
	bridge := s.vm.NewObject()
	if err := bridge.Set("signal", func(kind string) {
		switch kind {
		case "rendered":
			s.emit(func(sink ReadinessSink) { sink.MarkReadySignalObserved() })
		case "api":
			s.wantAPI = true
		default:
			s.logger.Warn("Unknown readiness signal", zap.String("kind", kind))
		}
	}); err != nil {
		return err
	}
	if err := bridge.Set("_setAPI", func(v goja.Value) {
		if s.adoptAPI(v) {
			s.emitHandle()
		}
	}); err != nil {
		return err
	}
	if err := bridge.Set("onPageInput", func(v goja.Value) {
		if fn, ok := goja.AssertFunction(v); ok {
			s.pageInput = fn
		}
	}); err != nil {
		return err
	}
	if err := s.vm.Set("docnav", bridge); err != nil {
		return err
	}

	console := s.vm.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		s.logger.Debug("Script console", zap.Any("args", args))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, log); err != nil {
			return err
		}
	}
	if err := s.vm.Set("console", console); err != nil {
		return err
	}

	_, err := s.vm.RunString(prelude)
	return err
}

// Load runs an SDK script. When the script leaves no registered API, the
// API expression is evaluated as a direct or promise-returning accessor.
func (s *ScriptedHandle) Load(ctx context.Context, src string) error {
	err := s.locked(ctx, func() error {
		if _, err := s.vm.RunScript(s.name, src); err != nil {
			return err
		}
		if s.api == nil && s.resolveAPIExpression() {
			s.emitHandle()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", s.name, err)
	}
	return nil
}

// HasAPI reports whether the script has yielded its API object
func (s *ScriptedHandle) HasAPI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api != nil
}

// Close makes every later call fail
func (s *ScriptedHandle) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Capabilities reports which navigation methods the API object defines
func (s *ScriptedHandle) Capabilities(ctx context.Context) (navigator.CapabilitySet, error) {
	var caps []navigator.Capability
	err := s.locked(ctx, func() error {
		if s.api == nil {
			return fmt.Errorf("%s has not yielded an API object", s.name)
		}
		for _, c := range navigator.AllCapabilities {
			if _, ok := goja.AssertFunction(s.api.Get(string(c))); ok {
				caps = append(caps, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return navigator.NewCapabilitySet(caps...), nil
}

// CurrentLocation calls getCurrentLocation. An undefined or null result
// yields a nil Location.
func (s *ScriptedHandle) CurrentLocation(ctx context.Context) (navigator.Location, error) {
	var loc navigator.Location
	err := s.invoke(ctx, navigator.CapGetCurrentLocation, nil, func(v goja.Value) error {
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return nil
		}
		m, ok := v.Export().(map[string]any)
		if !ok {
			return fmt.Errorf("getCurrentLocation returned %s, want an object", v.ExportType())
		}
		loc = navigator.Location(m)
		return nil
	})
	return loc, err
}

// GotoLocation calls gotoLocation with the strategy's argument
func (s *ScriptedHandle) GotoLocation(ctx context.Context, arg any) error {
	return s.invoke(ctx, navigator.CapGotoLocation, []any{arg}, nil)
}

// CurrentPage calls getCurrentPage
func (s *ScriptedHandle) CurrentPage(ctx context.Context) (int, error) {
	var page int
	err := s.invoke(ctx, navigator.CapGetCurrentPage, nil, func(v goja.Value) error {
		n, err := integer(v)
		page = n
		return err
	})
	return page, err
}

// Metadata calls getPDFMetadata and reads numPages
func (s *ScriptedHandle) Metadata(ctx context.Context) (navigator.Metadata, error) {
	var meta navigator.Metadata
	err := s.invoke(ctx, navigator.CapGetPDFMetadata, nil, func(v goja.Value) error {
		obj, ok := v.(*goja.Object)
		if !ok {
			return fmt.Errorf("getPDFMetadata returned %s, want an object", v.String())
		}
		n, err := integer(obj.Get("numPages"))
		if err != nil {
			return fmt.Errorf("numPages: %w", err)
		}
		meta.NumPages = n
		return nil
	})
	return meta, err
}

// Simulate invokes the handler installed with docnav.onPageInput
func (s *ScriptedHandle) Simulate(ctx context.Context, page int) error {
	return s.locked(ctx, func() error {
		if s.pageInput == nil {
			return fmt.Errorf("no page input handler: %w", naverrors.ErrCapabilityMissing)
		}
		v, err := s.pageInput(goja.Undefined(), s.vm.ToValue(page))
		if err != nil {
			return err
		}
		_, err = settle(v)
		return err
	})
}

// invoke calls an API method and hands the settled value to decode
func (s *ScriptedHandle) invoke(ctx context.Context, c navigator.Capability, args []any, decode func(goja.Value) error) error {
	return s.locked(ctx, func() error {
		if s.api == nil {
			return fmt.Errorf("%s: %w", c, naverrors.ErrCapabilityMissing)
		}
		fn, ok := goja.AssertFunction(s.api.Get(string(c)))
		if !ok {
			return fmt.Errorf("%s: %w", c, naverrors.ErrCapabilityMissing)
		}

		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = s.toJS(a)
		}

		v, err := fn(s.api, jsArgs...)
		if err != nil {
			return fmt.Errorf("%s threw: %w", c, err)
		}
		v, err = settle(v)
		if err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
		if decode == nil {
			return nil
		}
		return decode(v)
	})
}

// locked runs fn with exclusive VM access, interrupting it when ctx ends
func (s *ScriptedHandle) locked(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	err := func() error {
		if s.closed {
			return fmt.Errorf("%s is closed", s.name)
		}

		done := make(chan struct{})
		exited := make(chan struct{})
		go func() {
			defer close(exited)
			select {
			case <-ctx.Done():
				s.vm.Interrupt(ctx.Err())
			case <-done:
			}
		}()

		err := fn()
		if err == nil && s.wantAPI {
			s.wantAPI = false
			if s.resolveAPIExpression() {
				s.emitHandle()
			}
		}
		close(done)
		<-exited
		s.vm.ClearInterrupt()

		var interrupted *goja.InterruptedError
		if naverrors.As(err, &interrupted) {
			if cause, ok := interrupted.Value().(error); ok {
				return cause
			}
			return context.Canceled
		}
		return err
	}()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, notify := range pending {
		notify()
	}
	return err
}

// resolveAPIExpression evaluates the configured accessor. Caller holds mu.
func (s *ScriptedHandle) resolveAPIExpression() bool {
	if s.apiExpr == "" {
		return false
	}
	v, err := s.vm.RunString(s.apiExpr)
	if err != nil {
		s.logger.Debug("API expression failed", zap.Error(err))
		return false
	}
	v, err = settle(v)
	if err != nil {
		s.logger.Debug("API accessor did not yield", zap.Error(err))
		return false
	}
	return s.adoptAPI(v)
}

// adoptAPI stores v as the API object when it is one. Caller holds mu.
func (s *ScriptedHandle) adoptAPI(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	s.api = obj
	return true
}

func (s *ScriptedHandle) emitHandle() {
	s.emit(func(sink ReadinessSink) { sink.MarkAPIHandleAvailable(s) })
}

func (s *ScriptedHandle) emit(fn func(ReadinessSink)) {
	if s.sink == nil {
		return
	}
	sink := s.sink
	s.pending = append(s.pending, func() { fn(sink) })
}

// toJS converts a strategy argument. Locations become plain JS objects so
// the SDK can read and copy them like its own.
func (s *ScriptedHandle) toJS(arg any) goja.Value {
	switch a := arg.(type) {
	case navigator.Location:
		obj := s.vm.NewObject()
		for k, v := range a {
			obj.Set(k, v)
		}
		return obj
	default:
		return s.vm.ToValue(arg)
	}
}

// settle unwraps a promise that has already settled. goja drains its job
// queue when control returns to Go, so a pending promise here will not
// settle without further script activity.
func settle(v goja.Value) (goja.Value, error) {
	if v == nil {
		return goja.Undefined(), nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("promise rejected: %s", p.Result().String())
	default:
		return nil, fmt.Errorf("promise still pending")
	}
}

func integer(v goja.Value) (int, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, fmt.Errorf("value is undefined")
	}
	switch n := v.Export().(type) {
	case int64:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("value %q is not a number", v.String())
	}
}
