package session

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Persister stores at most one session record.
type Persister interface {
	// Load returns the persisted record, or nil when none exists.
	Load() (*Record, error)
	Save(Record) error
	Delete() error
}

// Listener is invoked with the new record after every store mutation.
// Listeners must not mutate the store from inside the callback.
type Listener func(Record)

// Store is the single mutable session record shared by the whole process.
// Every mutation persists the record and notifies subscribers before
// returning. Safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	record    Record
	hydrated  bool
	persister Persister

	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty store backed by the given persister.
func NewStore(p Persister) *Store {
	return &Store{
		persister: p,
		listeners: make(map[int]Listener),
	}
}

// Get returns a snapshot of the current record.
func (s *Store) Get() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.clone()
}

// Set replaces the whole record, persists it and notifies subscribers.
// Setting an empty record removes the persisted entry instead of writing one.
func (s *Store) Set(r Record) {
	s.update(func(cur *Record) { *cur = r.clone() })
}

// SetToken replaces only the access credential and its expiry.
func (s *Store) SetToken(token string, expiresAt int64) {
	s.update(func(cur *Record) {
		cur.AccessToken = token
		cur.ExpiresAt = expiresAt
	})
}

// SetUser replaces only the user identity.
func (s *Store) SetUser(u *AuthUser) {
	s.update(func(cur *Record) { cur.User = u })
}

// Clear resets the record to empty, removing the persisted entry.
func (s *Store) Clear() {
	s.Set(Record{})
}

// update applies a mutation, persists and notifies, all as one sequence.
// Persistence and subscriber state are captured under the lock; the
// callbacks themselves run outside it so listeners can call Get.
func (s *Store) update(mutate func(*Record)) {
	s.mu.Lock()
	mutate(&s.record)
	// A write makes the in-memory state authoritative; a later Hydrate
	// must not clobber it with stale storage contents.
	s.hydrated = true
	s.persistLocked()
	snapshot := s.record.clone()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Subscribe registers a listener invoked after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Hydrate loads the persisted record into the store. Only the first call
// reads storage; every subsequent call returns the in-memory record
// unchanged. A missing or unreadable entry yields the empty record.
func (s *Store) Hydrate() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		return s.record.clone()
	}
	s.hydrated = true

	stored, err := s.persister.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load persisted session, starting empty")
		return s.record.clone()
	}
	if stored != nil {
		s.record = stored.clone()
	}
	return s.record.clone()
}

// Hydrated reports whether storage has been read (or superseded by a write).
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// persistLocked writes the current record to storage. Failures are logged
// and otherwise ignored: persistence is best-effort, the in-memory record
// stays the source of truth.
func (s *Store) persistLocked() {
	var err error
	if s.record.Empty() {
		err = s.persister.Delete()
	} else {
		err = s.persister.Save(s.record)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}
}

func (s *Store) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// notify runs outside the store lock so listeners can call Get.
func notify(listeners []Listener, r Record) {
	for _, l := range listeners {
		l(r.clone())
	}
}
