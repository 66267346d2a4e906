package devauth

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

var _ ports.SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore keeps sessions in-process. Expired sessions are dropped
// lazily on read.
type MemorySessionStore struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates an empty store. A nil clock uses the real clock.
func NewMemorySessionStore(clock clockwork.Clock) *MemorySessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemorySessionStore{
		clock:    clock,
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	if sess.Expired(m.clock.Now()) {
		return errors.New("session is expired")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	if sess.Expired(m.clock.Now()) {
		delete(m.sessions, id)
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
