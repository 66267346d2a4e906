package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - session.go: Session controller timings and guards
//   - client.go: Suite API client configuration
//   - flags.go: Shared flag store backend (memory, file, Redis)
//   - http.go: Dev auth server HTTP configuration
//   - auth.go: Dev auth server sessions and dev user
//   - observability.go: Logging and metrics
//   - branding.go: Product naming used in notifications and CLI output
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, verbose output).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Session controller configuration
	Session SessionConfig

	// Suite API client configuration
	Client ClientConfig

	// Flag store configuration
	Flags FlagsConfig

	// Dev auth server configuration
	HTTP HTTPConfig
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Branding configuration
	Branding BrandingConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Session.Sanitize()
	c.Client.Sanitize()
	c.Flags.Sanitize()
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()
	c.Branding.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
