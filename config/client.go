package config

import (
	"strings"
	"time"
)

// ClientConfig contains settings for the suite API client used by the session controller.
type ClientConfig struct {
	// BaseURL is the origin of the suite API (scheme://host[:port]).
	BaseURL string `env:"SUITE_BASE_URL" envDefault:"http://localhost:8080"`

	// IdentityTimeout bounds GET /api/auth/user.
	IdentityTimeout time.Duration `env:"SUITE_IDENTITY_TIMEOUT" envDefault:"8s"`

	// LogoutTimeout bounds the best-effort POST /api/auth/logout.
	LogoutTimeout time.Duration `env:"SUITE_LOGOUT_TIMEOUT" envDefault:"2s"`

	// CSRFTimeout bounds the GET /api/health call that primes the CSRF cookie.
	CSRFTimeout time.Duration `env:"SUITE_CSRF_TIMEOUT" envDefault:"2s"`

	// CSRFCookieName is the same-origin cookie holding the CSRF token.
	CSRFCookieName string `env:"SUITE_CSRF_COOKIE" envDefault:"csrf_token"`

	// CSRFHeaderName carries the token on state-changing requests.
	CSRFHeaderName string `env:"SUITE_CSRF_HEADER" envDefault:"X-CSRF-Token"`

	// IdentityJMESPath optionally selects the identity object inside the response body
	// (e.g. "data.user"). Empty means the body is the identity.
	IdentityJMESPath string `env:"SUITE_IDENTITY_PATH" envDefault:""`

	// Auth401Limit bounds the auth401Events diagnostic log.
	Auth401Limit int `env:"SUITE_AUTH401_LIMIT" envDefault:"50"`

	// PersistCookies stores the cookie jar in the flag store so separate
	// invocations of the CLI share one session.
	PersistCookies bool `env:"SUITE_PERSIST_COOKIES" envDefault:"true"`
}

// Sanitize applies guardrails to client configuration values.
func (c *ClientConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.IdentityTimeout <= 0 {
		c.IdentityTimeout = 8 * time.Second
	}
	if c.LogoutTimeout <= 0 {
		c.LogoutTimeout = 2 * time.Second
	}
	if c.CSRFTimeout <= 0 {
		c.CSRFTimeout = 2 * time.Second
	}
	if c.CSRFCookieName = strings.TrimSpace(c.CSRFCookieName); c.CSRFCookieName == "" {
		c.CSRFCookieName = "csrf_token"
	}
	if c.CSRFHeaderName = strings.TrimSpace(c.CSRFHeaderName); c.CSRFHeaderName == "" {
		c.CSRFHeaderName = "X-CSRF-Token"
	}
	c.IdentityJMESPath = strings.TrimSpace(c.IdentityJMESPath)
	if c.Auth401Limit < 1 {
		c.Auth401Limit = 50
	}
}
