package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
)

// CredentialVerifier checks an email/password login attempt.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (domainauth.Principal, error)
}

// RoleMapper maps directory groups to an application role.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

// SessionStore persists and retrieves server-side user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}
