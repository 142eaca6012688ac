package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Status is the derived authentication state exposed to consumers.
type Status int

const (
	// StatusLoading means the startup refresh attempt has not settled yet.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Refresher mints a new access token using the long-lived credential.
// An empty token with a nil error means the session is terminated.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Binding adapts the store into an observable tri-state status. It starts in
// StatusLoading, performs at most one best-effort refresh on Start, and then
// never reports loading again until Reset. Status recomputes on every store
// mutation.
type Binding struct {
	store     *Store
	refresher Refresher

	mu        sync.Mutex
	attempted bool
	resolved  bool
	listeners map[int]func(Status)
	nextID    int

	unsubscribe func()
}

// NewBinding creates a binding over the store. The refresher is used for the
// one-time startup refresh; it may be nil to disable it.
func NewBinding(store *Store, refresher Refresher) *Binding {
	b := &Binding{
		store:     store,
		refresher: refresher,
		listeners: make(map[int]func(Status)),
	}
	b.unsubscribe = store.Subscribe(func(Record) {
		b.notify()
	})
	return b
}

// Start hydrates the store and, if no access token is present, performs one
// best-effort refresh. It is safe to call more than once; only the first call
// does anything. Blocks until the status is resolved.
func (b *Binding) Start(ctx context.Context) {
	b.mu.Lock()
	if b.attempted {
		b.mu.Unlock()
		return
	}
	b.attempted = true
	b.mu.Unlock()

	rec := b.store.Hydrate()
	if rec.AccessToken == "" && b.refresher != nil {
		// Failure here is not an error: the refresher clears the store
		// and the binding resolves to unauthenticated.
		if _, err := b.refresher.Refresh(ctx); err != nil {
			log.Debug().Err(err).Msg("startup session refresh aborted")
		}
	}

	b.mu.Lock()
	b.resolved = true
	b.mu.Unlock()
	b.notify()
}

// Status returns the current derived status.
func (b *Binding) Status() Status {
	b.mu.Lock()
	resolved := b.resolved
	b.mu.Unlock()

	if !resolved {
		return StatusLoading
	}
	rec := b.store.Get()
	if rec.User != nil && rec.AccessToken != "" {
		return StatusAuthenticated
	}
	return StatusUnauthenticated
}

// IsAuthenticated reports whether the status is StatusAuthenticated.
func (b *Binding) IsAuthenticated() bool {
	return b.Status() == StatusAuthenticated
}

// Subscribe registers a listener invoked with the derived status whenever it
// may have changed. Returns an unsubscribe function.
func (b *Binding) Subscribe(l func(Status)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Reset returns the binding to StatusLoading and re-arms the startup refresh.
func (b *Binding) Reset() {
	b.mu.Lock()
	b.attempted = false
	b.resolved = false
	b.mu.Unlock()
	b.notify()
}

// Close detaches the binding from the store.
func (b *Binding) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

func (b *Binding) notify() {
	status := b.Status()
	b.mu.Lock()
	listeners := make([]func(Status), 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}
