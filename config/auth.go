package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionStoreKind selects where the dev auth server keeps sessions.
type SessionStoreKind string

const (
	// SessionStoreMemory keeps sessions in-process.
	SessionStoreMemory SessionStoreKind = "memory"
	// SessionStoreRedis keeps sessions in Redis (uses FlagsConfig.Redis connection settings).
	SessionStoreRedis SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreKind: %q (valid options: memory, redis)", v)
	}
}

// DevUserConfig describes the single account the dev auth server accepts.
type DevUserConfig struct {
	ID         string   `env:"ID"         envDefault:"dev-user"`
	Email      string   `env:"EMAIL"      envDefault:"dev@example.com"`
	FirstName  string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName   string   `env:"LAST_NAME"  envDefault:"User"`
	PseudoName string   `env:"PSEUDO_NAME"`
	Groups     []string `env:"GROUPS"     envDefault:"admins" envSeparator:";"`

	// Password is hashed with bcrypt at startup. Ignored when PasswordHash is set.
	Password string `env:"PASSWORD" envDefault:"devpassword"`

	// PasswordHash is a pre-computed bcrypt hash.
	PasswordHash string `env:"PASSWORD_HASH"`
}

// AuthConfig groups dev auth server authentication configuration.
type AuthConfig struct {
	// SessionStore selects the session persistence backend.
	SessionStore SessionStoreKind `env:"AUTH_SESSION_STORE" envDefault:"memory"`

	// SessionTTL is the server-side session lifetime.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"60m"`

	// SessionCookieName names the cookie carrying the session ID.
	SessionCookieName string `env:"AUTH_SESSION_COOKIE" envDefault:"session_id"`

	// SessionKeyPrefix namespaces Redis session keys.
	SessionKeyPrefix string `env:"AUTH_SESSION_KEY_PREFIX" envDefault:"onehub:session:"`

	// DevUser is the account accepted by POST /api/auth/login.
	DevUser DevUserConfig `envPrefix:"DEV_USER_"`

	// AdminGroup and MarketingGroup map dev user groups to roles.
	AdminGroup     string `env:"AUTH_ADMIN_GROUP"     envDefault:"admins"`
	MarketingGroup string `env:"AUTH_MARKETING_GROUP" envDefault:"marketing"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionStore == "" {
		a.SessionStore = SessionStoreMemory
	}
	if a.SessionTTL < time.Minute {
		a.SessionTTL = time.Minute
	}
	if a.SessionCookieName = strings.TrimSpace(a.SessionCookieName); a.SessionCookieName == "" {
		a.SessionCookieName = "session_id"
	}
	if a.SessionKeyPrefix == "" {
		a.SessionKeyPrefix = "onehub:session:"
	}
	a.DevUser.Email = strings.ToLower(strings.TrimSpace(a.DevUser.Email))
	a.DevUser.Groups = trimNonEmpty(a.DevUser.Groups)
}
