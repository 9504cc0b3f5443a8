// internal/navigator/resolver.go
package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	naverrors "github.com/valpere/docnav/internal/errors"
)

// Dispositions reported to the Recorder for each navigation request
const (
	DispositionDispatched = "dispatched"
	DispositionQueued     = "queued"
	DispositionRejected   = "rejected"
	// DispositionDropped counts waiting targets evicted by a full queue
	DispositionDropped = "dropped"
)

// Options configures a Resolver
type Options struct {
	// Passes is how many times the full strategy list is tried
	Passes int
	// PassPause separates passes, absorbing transient SDK busy states
	PassPause time.Duration
	// PollAttempts and PollInterval drive verification after each attempt
	PollAttempts int
	PollInterval time.Duration
	// QueueSize bounds dispatched targets waiting for the worker. When full,
	// the oldest waiting target is dropped; order is otherwise preserved.
	QueueSize int

	Strategies []Strategy
	Simulator  Simulator
	Logger     *zap.Logger
	Recorder   Recorder

	// OnResult, when set, receives every finished background sequence
	OnResult func(Result)
}

// DefaultOptions returns the production timings
func DefaultOptions() Options {
	return Options{
		Passes:       2,
		PassPause:    300 * time.Millisecond,
		PollAttempts: 10,
		PollInterval: 160 * time.Millisecond,
		QueueSize:    16,
	}
}

// Resolver navigates a PDF-viewer SDK to a page by trying calling
// conventions until one is verified. One Resolver serves one document
// session; a reloaded document needs a new Resolver.
type Resolver struct {
	opts      Options
	readiness *Readiness
	poller    *Poller
	logger    *zap.Logger
	recorder  Recorder

	// queue holds dispatched one-based targets in request order
	qmu   sync.Mutex
	queue []int
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// run serialises resolution sequences, including DebugNavigate
	run sync.Mutex

	mu   sync.RWMutex
	last *Result
}

// New creates a Resolver and starts its worker
func New(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Passes <= 0 {
		opts.Passes = def.Passes
	}
	if opts.PassPause < 0 {
		opts.PassPause = def.PassPause
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = def.PollAttempts
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Strategies == nil {
		opts.Strategies = DefaultStrategies()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		opts:     opts,
		poller:   NewPoller(opts.PollAttempts, opts.PollInterval, opts.Recorder),
		logger:   opts.Logger,
		recorder: opts.Recorder,
		queue:    make([]int, 0, opts.QueueSize),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.readiness = NewReadinessWith(r.enqueue)
	go r.worker()
	return r
}

// MarkAPIHandleAvailable stores the SDK handle and dispatches the pending
// target if this completes readiness.
func (r *Resolver) MarkAPIHandleAvailable(h Handle) {
	if h == nil {
		r.logger.Warn("Ignoring nil SDK handle")
		return
	}
	_, released := r.readiness.MarkAPIHandleAvailable(h)
	r.logger.Debug("SDK handle available",
		zap.Bool("ready", r.readiness.IsReady()), zap.Bool("released_pending", released))
}

// MarkReadySignalObserved records the render-complete event and dispatches
// the pending target if this completes readiness.
func (r *Resolver) MarkReadySignalObserved() {
	_, released := r.readiness.MarkReadySignalObserved()
	r.logger.Debug("Render-complete signal observed",
		zap.Bool("ready", r.readiness.IsReady()), zap.Bool("released_pending", released))
}

// IsReady reports whether both readiness conditions hold
func (r *Resolver) IsReady() bool {
	return r.readiness.IsReady()
}

// NavigateToPage requests navigation to a zero-based page index. It returns
// true if the request was dispatched now and false if it was queued until
// the SDK is ready (or rejected as invalid). It never blocks on the SDK.
func (r *Resolver) NavigateToPage(pageIndex int) bool {
	if pageIndex < 0 {
		r.logger.Warn("Rejecting navigation to negative page index", zap.Int("page_index", pageIndex))
		r.recorder.NavigationRequested(DispositionRejected)
		return false
	}
	if r.ctx.Err() != nil {
		r.logger.Warn("Resolver closed, dropping navigation", zap.Int("page_index", pageIndex))
		r.recorder.NavigationRequested(DispositionRejected)
		return false
	}

	if !r.readiness.Request(pageIndex) {
		r.logger.Info("SDK not ready, navigation queued", zap.Int("page_index", pageIndex))
		r.recorder.NavigationRequested(DispositionQueued)
		return false
	}
	return true
}

// Closed reports whether Close has been called
func (r *Resolver) Closed() bool {
	return r.ctx.Err() != nil
}

// enqueue appends a zero-based target to the worker queue. It runs under
// the readiness lock and never blocks.
func (r *Resolver) enqueue(pageIndex int) {
	r.recorder.NavigationRequested(DispositionDispatched)

	r.qmu.Lock()
	if len(r.queue) >= r.opts.QueueSize {
		dropped := r.queue[0]
		r.queue = r.queue[1:]
		r.logger.Warn("Navigation queue full, dropping oldest target",
			zap.Int("page", dropped), zap.Int("queue_size", r.opts.QueueSize))
		r.recorder.NavigationRequested(DispositionDropped)
	}
	r.queue = append(r.queue, pageIndex+1)
	r.qmu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Resolver) next() (int, bool) {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	if len(r.queue) == 0 {
		return 0, false
	}
	page := r.queue[0]
	r.queue = r.queue[1:]
	return page, true
}

func (r *Resolver) worker() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		}
		for r.ctx.Err() == nil {
			page, ok := r.next()
			if !ok {
				break
			}
			res := r.resolve(r.ctx, page)
			if r.opts.OnResult != nil {
				r.opts.OnResult(res)
			}
		}
	}
}

// Resolve runs one resolution sequence for a one-based page and reports
// whether a strategy was verified.
func (r *Resolver) Resolve(ctx context.Context, pageOneBased int) bool {
	return r.resolve(ctx, pageOneBased).Success
}

// Verify polls the SDK's reported page against a one-based target
func (r *Resolver) Verify(ctx context.Context, pageOneBased int) bool {
	h := r.readiness.Handle()
	if h == nil {
		return false
	}
	caps, _ := r.probe(ctx, h)
	return r.poller.Verify(ctx, h, caps, pageOneBased)
}

// LastResult returns the most recent finished sequence
func (r *Resolver) LastResult() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Close stops the worker. An in-flight sequence observes the cancellation
// at its next suspension point.
func (r *Resolver) Close() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})
}

func (r *Resolver) resolve(ctx context.Context, page int) Result {
	r.run.Lock()
	defer r.run.Unlock()

	start := time.Now()
	res := r.sequence(ctx, page)
	res.Duration = time.Since(start)

	r.recorder.Resolved(res.Success, res.Duration)
	r.mu.Lock()
	r.last = &res
	r.mu.Unlock()

	log := r.logger.With(zap.Int("page", page), zap.Duration("duration", res.Duration))
	if res.Success {
		log.Info("Navigation verified", zap.String("strategy", res.Strategy), zap.Int("pass", res.Pass))
	} else {
		log.Warn("Navigation failed", zap.Error(res.Err), zap.Bool("simulated", res.Simulated))
	}
	return res
}

func (r *Resolver) sequence(ctx context.Context, page int) Result {
	res := Result{TargetPage: page}

	if page < 1 {
		res.Err = naverrors.New(naverrors.KindInvalidTarget, page, nil)
		return res
	}

	h := r.readiness.Handle()
	if h == nil {
		res.Err = naverrors.New(naverrors.KindNotReady, page, fmt.Errorf("no SDK handle"))
		return res
	}

	caps, _ := r.probe(ctx, h)
	if total, ok := r.pageCount(ctx, h, caps); ok && page > total {
		res.Err = naverrors.New(naverrors.KindOutOfRange, page, fmt.Errorf("document has %d pages", total))
		return res
	}

	target := NewTarget(page)
	warned := false
	for pass := 1; pass <= r.opts.Passes; pass++ {
		if pass > 1 {
			if !sleep(ctx, r.opts.PassPause) {
				res.Err = naverrors.New(naverrors.KindExhausted, page, ctx.Err())
				return res
			}
			caps, _ = r.probe(ctx, h)
		}
		if !CanVerify(caps) && !warned {
			warned = true
			r.logger.Warn("SDK exposes no current-page accessor, attempts cannot be verified",
				zap.Int("page", page), zap.Int("pass", pass))
		}

		for _, s := range r.opts.Strategies {
			outcome, err := r.attempt(ctx, h, caps, s, target)
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Pass: pass, Outcome: outcome, Err: err})
			r.recorder.StrategyAttempted(s.Name, outcome)

			if outcome == OutcomeVerified {
				res.Success = true
				res.Strategy = s.Name
				res.Pass = pass
				return res
			}
			if ctx.Err() != nil {
				res.Err = naverrors.New(naverrors.KindExhausted, page, ctx.Err())
				return res
			}
		}
	}

	res.Simulated = r.simulate(ctx, h, page)
	res.Err = naverrors.New(naverrors.KindExhausted, page,
		fmt.Errorf("%d strategies failed over %d passes", len(r.opts.Strategies), r.opts.Passes))
	return res
}

// attempt runs one strategy and verifies it. Capability gaps map to
// OutcomeNotApplicable; rejected or unverified calls to OutcomeUnverified.
func (r *Resolver) attempt(ctx context.Context, h Handle, caps CapabilitySet, s Strategy, t Target) (Outcome, error) {
	log := r.logger.With(zap.String("strategy", s.Name), zap.Int("page", t.OneBased))

	if !caps.Has(s.Requires...) {
		log.Debug("Strategy not applicable, capability missing")
		return OutcomeNotApplicable, nil
	}

	var arg any
	err := guard(func() error {
		var err error
		arg, err = s.Build(ctx, h, t)
		return err
	})
	if naverrors.Is(err, errNotApplicable) || naverrors.IsCapabilityMissing(err) {
		log.Debug("Strategy not applicable", zap.Error(err))
		return OutcomeNotApplicable, nil
	}
	if err != nil {
		log.Debug("Strategy could not build its argument", zap.Error(err))
		return OutcomeUnverified, naverrors.New(naverrors.KindCallRejected, t.OneBased, err).WithStrategy(s.Name)
	}

	err = guard(func() error { return h.GotoLocation(ctx, arg) })
	if naverrors.IsCapabilityMissing(err) {
		log.Debug("Strategy not applicable", zap.Error(err))
		return OutcomeNotApplicable, nil
	}
	if err != nil {
		log.Debug("SDK rejected call", zap.Error(err))
		return OutcomeUnverified, naverrors.New(naverrors.KindCallRejected, t.OneBased, err).WithStrategy(s.Name)
	}

	if r.poller.Verify(ctx, h, caps, t.OneBased) {
		return OutcomeVerified, nil
	}
	log.Debug("Call accepted but page never changed")
	return OutcomeUnverified, naverrors.New(naverrors.KindVerificationTimeout, t.OneBased, nil).WithStrategy(s.Name)
}

// simulate runs the UI fallback once. The outcome is logged only; a
// simulated page change cannot be verified.
func (r *Resolver) simulate(ctx context.Context, h Handle, page int) bool {
	sim := r.opts.Simulator
	if sim == nil {
		if hs, ok := h.(Simulator); ok {
			sim = hs
		}
	}
	if sim == nil {
		r.logger.Warn("All strategies failed and no UI simulator is configured", zap.Int("page", page))
		return false
	}

	err := guard(func() error { return sim.Simulate(ctx, page) })
	r.recorder.Simulated(err)
	if err != nil {
		r.logger.Warn("UI simulation failed", zap.Int("page", page), zap.Error(err))
	} else {
		r.logger.Info("UI simulation dispatched", zap.Int("page", page))
	}
	return true
}

func (r *Resolver) probe(ctx context.Context, h Handle) (CapabilitySet, error) {
	var caps CapabilitySet
	err := guard(func() error {
		var err error
		caps, err = h.Capabilities(ctx)
		return err
	})
	if err != nil {
		r.logger.Warn("Capability probe failed", zap.Error(err))
		return CapabilitySet{}, err
	}
	if caps == nil {
		caps = CapabilitySet{}
	}
	return caps, nil
}

func (r *Resolver) pageCount(ctx context.Context, h Handle, caps CapabilitySet) (int, bool) {
	if !caps.Has(CapGetPDFMetadata) {
		return 0, false
	}
	var md Metadata
	err := guard(func() error {
		var err error
		md, err = h.Metadata(ctx)
		return err
	})
	if err != nil {
		r.logger.Debug("Metadata unavailable", zap.Error(err))
		return 0, false
	}
	if md.NumPages <= 0 {
		return 0, false
	}
	return md.NumPages, true
}
