package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Locked serializes access to a Session. Every operation on a session runs
// to completion before the next one starts.
type Locked struct {
	mu      sync.Mutex
	session *Session
}

func NewLocked(s *Session) *Locked {
	return &Locked{session: s}
}

// Do runs fn with exclusive access to the session. fn must not retain it.
func (l *Locked) Do(fn func(s *Session)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.session)
}

var (
	ErrTooManySessions = errors.New("session limit reached")
	ErrSessionNotFound = errors.New("session not found")
)

// Factory builds a fresh session, typically with its own random source.
type Factory func() (*Session, error)

// Registry holds independent sessions keyed by id.
type Registry struct {
	sessions map[uuid.UUID]*Locked
	factory  Factory
	// limit caps the live sessions; zero means unbounded.
	limit int
	// pending counts slots reserved by Creates still building their session.
	pending int
	sync.RWMutex
}

func NewRegistry(factory Factory, limit int) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Locked),
		factory:  factory,
		limit:    limit,
	}
}

// Create builds and registers a new session. A slot is reserved before the
// session is built, so nothing is built once the limit is reached.
func (r *Registry) Create() (uuid.UUID, *Locked, error) {
	r.Lock()
	if r.limit > 0 && len(r.sessions)+r.pending >= r.limit {
		r.Unlock()
		return uuid.Nil, nil, ErrTooManySessions
	}
	r.pending++
	r.Unlock()

	s, err := r.factory()

	r.Lock()
	defer r.Unlock()
	r.pending--
	if err != nil {
		return uuid.Nil, nil, err
	}

	id := uuid.New()
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = uuid.New()
	}
	locked := NewLocked(s)
	r.sessions[id] = locked
	return id, locked, nil
}

func (r *Registry) Get(id uuid.UUID) (*Locked, error) {
	r.RLock()
	defer r.RUnlock()
	if locked, ok := r.sessions[id]; ok {
		return locked, nil
	}
	return nil, ErrSessionNotFound
}

func (r *Registry) Delete(id uuid.UUID) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}
