package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

const defaultSessionTTL = time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Verifier ports.CredentialVerifier // Required
	Sessions ports.SessionStore       // Required
	Roles    ports.RoleMapper         // Required

	TTL    time.Duration   // Optional: session lifetime, default 1h
	Clock  clockwork.Clock // Optional: real clock
	Logger *slog.Logger    // Optional: structured logger
}

// AuthService is the server side of the identity contract: it turns verified
// credentials into cookie sessions and resolves them back to identities.
type AuthService struct {
	verifier ports.CredentialVerifier
	sessions ports.SessionStore
	roles    ports.RoleMapper
	ttl      time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// ErrSessionExpired is returned by GetSession for a session past its expiry.
var ErrSessionExpired = errors.New("session expired")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	s := &AuthService{
		verifier: opts.Verifier,
		sessions: opts.Sessions,
		roles:    opts.Roles,
		ttl:      opts.TTL,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	return s
}

// Login verifies the credentials, maps the user's groups to a role and
// persists a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domainauth.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}
	if password == "" {
		return nil, apperrors.Validation("password is required")
	}

	principal, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) {
			s.logger.InfoContext(ctx, "login rejected", "email", email)
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	identity := principal.Identity
	identity.Role = s.roles.Map(principal.Groups)
	now := s.clock.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	session := domainauth.Session{
		ID:        generateSessionID(),
		Identity:  identity,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "user_id", identity.ID, "role", identity.Role)
	return &session, nil
}

// GetSession retrieves a live session by ID. Expired sessions are deleted.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, domainauth.ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.clock.Now()) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Logout removes a session. An empty ID is a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// generateSessionID creates a URL-safe random session ID.
func generateSessionID() string {
	return uuid.New().String()
}
