package auth

// Package auth provides hand-written fakes for the auth ports used in unit tests.

import (
	"context"
	"errors"
	"strings"
	"sync"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

var (
	_ ports.CredentialVerifier = (*StubVerifier)(nil)
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.RoleMapper         = RoleMapperFunc(nil)
)

// StubVerifier accepts exactly one email/password pair.
type StubVerifier struct {
	Email    string
	Password string
	User     domainauth.Identity
	Groups   []string

	// VerifyFunc overrides the default behavior when set.
	VerifyFunc func(ctx context.Context, email, password string) (domainauth.Principal, error)

	mu    sync.Mutex
	calls int
}

// NewStubVerifier returns a verifier for a default mock user.
func NewStubVerifier() *StubVerifier {
	return &StubVerifier{
		Email:    "mock.user@example.com",
		Password: "secret",
		User: domainauth.Identity{
			ID:        "mock-user-1",
			Email:     "mock.user@example.com",
			FirstName: "Mock",
			LastName:  "User",
		},
		Groups: []string{"users"},
	}
}

func (v *StubVerifier) Verify(ctx context.Context, email, password string) (domainauth.Principal, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()

	if v.VerifyFunc != nil {
		return v.VerifyFunc(ctx, email, password)
	}
	if !strings.EqualFold(email, v.Email) || password != v.Password {
		return domainauth.Principal{}, domainauth.ErrInvalidCredentials
	}
	return domainauth.Principal{
		Identity: v.User,
		Groups:   append([]string(nil), v.Groups...),
	}, nil
}

// Calls returns how many times Verify ran.
func (v *StubVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
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
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are stored.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RoleMapperFunc adapts a function to ports.RoleMapper.
type RoleMapperFunc func(groups []string) domainauth.Role

func (f RoleMapperFunc) Map(groups []string) domainauth.Role { return f(groups) }

// FixedRole returns a RoleMapper that always answers role.
func FixedRole(role domainauth.Role) RoleMapperFunc {
	return func([]string) domainauth.Role { return role }
}
