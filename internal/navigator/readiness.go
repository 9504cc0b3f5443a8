// internal/navigator/readiness.go
package navigator

import "sync"

// Readiness tracks whether the SDK's API object and its render-complete
// signal have both arrived, and holds at most one navigation request issued
// before that point. Flags are never reset; one Readiness serves one
// document session.
type Readiness struct {
	mu             sync.Mutex
	handle         Handle
	hasAPIHandle   bool
	hasReadySignal bool
	pending        int
	hasPending     bool

	dispatch func(page int)
}

// NewReadiness creates a tracker with both flags cleared
func NewReadiness() *Readiness {
	return &Readiness{}
}

// NewReadinessWith creates a tracker that hands every released target
// (zero-based) to dispatch while still holding its lock, so a target
// released on transition is always enqueued ahead of requests made after
// readiness. dispatch must not call back into the tracker.
func NewReadinessWith(dispatch func(page int)) *Readiness {
	return &Readiness{dispatch: dispatch}
}

// MarkAPIHandleAvailable stores the SDK handle. Later calls replace the
// stored handle, since some SDKs deliver a more complete object later. If
// this call completes readiness, the pending target (zero-based) is handed
// back for dispatch.
func (r *Readiness) MarkAPIHandleAvailable(h Handle) (int, bool) {
	if h == nil {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handle = h
	wasReady := r.ready()
	r.hasAPIHandle = true
	return r.takeOnTransition(wasReady)
}

// MarkReadySignalObserved records the render-complete event. If this call
// completes readiness, the pending target is handed back for dispatch.
func (r *Readiness) MarkReadySignalObserved() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasReady := r.ready()
	r.hasReadySignal = true
	return r.takeOnTransition(wasReady)
}

// IsReady reports whether navigation is permitted
func (r *Readiness) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready()
}

// Handle returns the current SDK handle, or nil before one arrived
func (r *Readiness) Handle() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Request either permits immediate dispatch (true) or stores page as the
// single pending target, replacing any earlier one (false). The check and
// the store happen under one lock so a request can never be stranded by a
// concurrent readiness transition.
func (r *Readiness) Request(page int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready() {
		if r.dispatch != nil {
			r.dispatch(page)
		}
		return true
	}
	r.pending = page
	r.hasPending = true
	return false
}

// DrainPending removes and returns the pending target
func (r *Readiness) DrainPending() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.take()
}

// Pending returns the pending target without consuming it
func (r *Readiness) Pending() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending, r.hasPending
}

// State returns both flags
func (r *Readiness) State() (hasAPIHandle, hasReadySignal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasAPIHandle, r.hasReadySignal
}

func (r *Readiness) ready() bool {
	return r.hasAPIHandle && r.hasReadySignal
}

func (r *Readiness) takeOnTransition(wasReady bool) (int, bool) {
	if wasReady || !r.ready() {
		return 0, false
	}
	page, ok := r.take()
	if ok && r.dispatch != nil {
		r.dispatch(page)
	}
	return page, ok
}

func (r *Readiness) take() (int, bool) {
	if !r.hasPending {
		return 0, false
	}
	page := r.pending
	r.pending = 0
	r.hasPending = false
	return page, true
}
