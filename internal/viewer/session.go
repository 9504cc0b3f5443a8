// internal/viewer/session.go
package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/navigator"
)

// Session is one opened document with its own resolver
type Session interface {
	ID() string
	URL() string
	OpenedAt() time.Time
	Resolver() *navigator.Resolver
	Close() error
}

// SessionDeps carries the collaborators shared by every session
type SessionDeps struct {
	Logger   *zap.Logger
	Recorder navigator.Recorder
	OnResult func(sessionID string, result navigator.Result)
}

// BrowserSession drives a viewer page in Chrome. Readiness comes from the
// bootstrap script's binding calls, from polling the API expression and,
// when configured, from polling the rendered expression.
type BrowserSession struct {
	id       string
	url      string
	opened   time.Time
	cfg      config.BrowserConfig
	dur      config.Durations
	logger   *zap.Logger
	resolver *navigator.Resolver
	handle   *BrowserHandle

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	signals  chan string
	done     chan struct{}
	watching bool

	mu       sync.Mutex
	hasAPI   bool
	rendered bool
	closed   bool
}

var _ Session = (*BrowserSession)(nil)

// OpenBrowserSession launches Chrome, installs the bootstrap and loads url.
// It returns once the page has loaded; readiness is tracked in the
// background until browser.ready_timeout.
func OpenBrowserSession(ctx context.Context, cfg *config.Config, url string, deps SessionDeps) (*BrowserSession, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	dur, err := cfg.Durations()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := deps.Logger.With(zap.String("session", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg.Browser)...)
	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	s := &BrowserSession{
		id:          id,
		url:         url,
		opened:      time.Now(),
		cfg:         cfg.Browser,
		dur:         dur,
		logger:      logger,
		ctx:         bctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		signals:     make(chan string, 8),
		done:        make(chan struct{}),
	}
	s.handle = &BrowserHandle{ctx: bctx, callTimeout: dur.BrowserTimeout}

	opts, err := NavigatorOptions(cfg, logger, deps.Recorder)
	if err != nil {
		s.shutdown()
		return nil, err
	}
	opts.Simulator = &BrowserSimulator{
		ctx:         bctx,
		selector:    cfg.Browser.ViewerSelector,
		callTimeout: dur.BrowserTimeout,
		logger:      logger,
	}
	if deps.OnResult != nil {
		opts.OnResult = func(r navigator.Result) { deps.OnResult(id, r) }
	}
	s.resolver = navigator.New(opts)

	if err := s.start(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.watching = true
	go s.watch()
	return s, nil
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

func (s *BrowserSession) start(ctx context.Context) error {
	// The first Run allocates the browser and binds it to s.ctx, so it must
	// not carry a deadline
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			select {
			case s.signals <- e.Payload:
			default:
				s.logger.Warn("Dropping readiness signal", zap.String("kind", e.Payload))
			}
		}
	})

	runCtx, cancel := context.WithTimeout(s.ctx, s.dur.BrowserTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := chromedp.Tasks{
		runtime.AddBinding(bindingName),
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
	}
	if s.cfg.BootstrapScript != "" {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(s.cfg.BootstrapScript).Do(ctx)
			return err
		}))
	}
	tasks = append(tasks,
		chromedp.Navigate(s.url),
		chromedp.WaitReady("body"),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("failed to load viewer %s: %w", s.url, err)
	}
	s.logger.Info("Viewer loaded", zap.String("url", s.url))
	return nil
}

// watch turns binding signals and polling into readiness marks
func (s *BrowserSession) watch() {
	defer close(s.done)

	ticker := time.NewTicker(s.dur.ProbeInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.dur.ReadyTimeout)
	defer deadline.Stop()

	s.probe()
	for {
		if s.resolver.IsReady() {
			s.logger.Info("Viewer ready")
			s.drainSignals()
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case kind := <-s.signals:
			s.onSignal(kind)
		case <-ticker.C:
			s.probe()
		case <-deadline.C:
			hasAPI, rendered := s.flags()
			s.logger.Warn("Viewer did not become ready",
				zap.Duration("timeout", s.dur.ReadyTimeout),
				zap.Bool("api_handle", hasAPI),
				zap.Bool("ready_signal", rendered))
			// Signals still arriving after the deadline are honoured
			s.drainSignals()
			return
		}
	}
}

// drainSignals handles late signals until the session closes, so an SDK
// that replaces its API object still reaches the resolver
func (s *BrowserSession) drainSignals() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case kind := <-s.signals:
			s.onSignal(kind)
		}
	}
}

func (s *BrowserSession) onSignal(kind string) {
	s.logger.Debug("Readiness signal", zap.String("kind", kind))
	switch kind {
	case "api":
		s.probeAPI(true)
	case "rendered":
		s.markRendered()
	default:
		s.logger.Warn("Unknown readiness signal", zap.String("kind", kind))
	}
}

func (s *BrowserSession) probe() {
	hasAPI, rendered := s.flags()
	if !hasAPI {
		s.probeAPI(false)
	}
	if !rendered && s.cfg.RenderedExpression != "" {
		var ok bool
		if err := evaluate(s.ctx, s.ctx, s.dur.ProbeInterval*4, s.cfg.RenderedExpression, &ok); err == nil && ok {
			s.markRendered()
		}
	}
}

// probeAPI evaluates the API expression, awaiting a returned promise, and
// stores the object in the page. A replaced object re-marks the handle.
func (s *BrowserSession) probeAPI(replace bool) {
	hasAPI, _ := s.flags()
	if hasAPI && !replace {
		return
	}

	expr := fmt.Sprintf(`(async () => {
  try {
    const a = await (%s);
    if (a === null || a === undefined) { return false; }
    %s = a;
    return true;
  } catch (e) {
    return false;
  }
})()`, s.cfg.APIExpression, apiSlot)

	var found bool
	if err := evaluate(s.ctx, s.ctx, s.dur.BrowserTimeout, expr, &found); err != nil {
		s.logger.Debug("API probe failed", zap.Error(err))
		return
	}
	if !found {
		return
	}

	s.mu.Lock()
	s.hasAPI = true
	s.mu.Unlock()
	s.resolver.MarkAPIHandleAvailable(s.handle)
}

func (s *BrowserSession) markRendered() {
	s.mu.Lock()
	already := s.rendered
	s.rendered = true
	s.mu.Unlock()
	if !already {
		s.resolver.MarkReadySignalObserved()
	}
}

func (s *BrowserSession) flags() (hasAPI, rendered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasAPI, s.rendered
}

// ID returns the session identifier
func (s *BrowserSession) ID() string { return s.id }

// URL returns the viewer URL
func (s *BrowserSession) URL() string { return s.url }

// OpenedAt returns when the session was opened
func (s *BrowserSession) OpenedAt() time.Time { return s.opened }

// Resolver returns the session's resolver
func (s *BrowserSession) Resolver() *navigator.Resolver { return s.resolver }

// Close stops the resolver and the browser
func (s *BrowserSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.resolver != nil {
		s.resolver.Close()
	}
	s.shutdown()
	if s.watching {
		<-s.done
	}
	s.logger.Info("Session closed")
	return nil
}

func (s *BrowserSession) shutdown() {
	s.cancel()
	s.allocCancel()
}
