// internal/viewer/registry.go
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors
var (
	ErrRegistryFull   = errors.New("session limit reached")
	ErrRegistryClosed = errors.New("registry is closed")
	ErrUnknownSession = errors.New("unknown session")
)

// Opener creates a session for a URL
type Opener func(ctx context.Context, url string) (Session, error)

// Registry tracks open sessions up to a fixed limit
type Registry struct {
	opener   Opener
	maxSize  int
	sessions map[string]Session
	opening  int
	mu       sync.RWMutex
	closed   bool

	onOpen  func(Session)
	onClose func(Session)
}

// NewRegistry creates a registry that opens sessions with opener
func NewRegistry(opener Opener, maxSize int) *Registry {
	if maxSize <= 0 {
		maxSize = 4
	}
	return &Registry{
		opener:   opener,
		maxSize:  maxSize,
		sessions: make(map[string]Session),
	}
}

// Limit returns the maximum number of sessions
func (r *Registry) Limit() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxSize
}

// SetLimit changes the maximum number of sessions. Sessions above a lowered
// limit stay open; new opens are refused until the count drops below it.
func (r *Registry) SetLimit(maxSize int) {
	if maxSize <= 0 {
		return
	}
	r.mu.Lock()
	r.maxSize = maxSize
	r.mu.Unlock()
}

// OnOpen and OnClose register lifecycle hooks, typically for metrics
func (r *Registry) OnOpen(fn func(Session))  { r.onOpen = fn }
func (r *Registry) OnClose(fn func(Session)) { r.onClose = fn }

// Open creates and registers a session. The slot is reserved before the
// opener runs so concurrent opens cannot exceed the limit.
func (r *Registry) Open(ctx context.Context, url string) (Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if len(r.sessions)+r.opening >= r.maxSize {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrRegistryFull, r.maxSize)
	}
	r.opening++
	r.mu.Unlock()

	s, err := r.opener(ctx, url)

	r.mu.Lock()
	r.opening--
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return nil, ErrRegistryClosed
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	if r.onOpen != nil {
		r.onOpen(s)
	}
	return s, nil
}

// Get returns a session by ID
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets a session
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return r.closeSession(s)
}

// List returns the open sessions, oldest first
func (r *Registry) List() []Session {
	r.mu.RLock()
	list := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].OpenedAt().Before(list[j].OpenedAt()) })
	return list
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close closes every session and rejects later opens
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := r.closeSession(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeSession(s Session) error {
	err := s.Close()
	if r.onClose != nil {
		r.onClose(s)
	}
	return err
}
