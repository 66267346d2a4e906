package config

import (
	"slices"
	"strings"
	"time"
)

// SessionConfig controls the session lifecycle controller.
type SessionConfig struct {
	// StaleTime is how long a successful identity check is reused without refetching.
	StaleTime time.Duration `env:"SESSION_STALE_TIME" envDefault:"60s"`

	// GCTime is how long an unused cached identity is kept.
	GCTime time.Duration `env:"SESSION_GC_TIME" envDefault:"10m"`

	// LoginGrace is the window after a recorded login during which rejected
	// identity checks are retried to ride out session-store propagation.
	LoginGrace time.Duration `env:"SESSION_LOGIN_GRACE" envDefault:"2s"`

	// RedirectThrottle is the minimum spacing between two redirects to the login page.
	RedirectThrottle time.Duration `env:"SESSION_REDIRECT_THROTTLE" envDefault:"5s"`

	// LogoutFlagTTL is how long the justLoggedOut marker blocks identity checks.
	LogoutFlagTTL time.Duration `env:"SESSION_LOGOUT_FLAG_TTL" envDefault:"5s"`

	// LogoutNavigateDelay gives the logout notification time to render before navigating.
	LogoutNavigateDelay time.Duration `env:"SESSION_LOGOUT_NAVIGATE_DELAY" envDefault:"100ms"`

	// IdleTimeout logs the user out after this long without an activity signal.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"60m"`

	// IdleCheckInterval is how often inactivity is evaluated.
	IdleCheckInterval time.Duration `env:"SESSION_IDLE_CHECK_INTERVAL" envDefault:"60s"`

	// ActivityKinds are the interaction signals that count as activity.
	ActivityKinds []string `env:"SESSION_ACTIVITY_KINDS" envDefault:"mousedown,keydown,scroll,touchstart,visibilitychange" envSeparator:","`

	// Circuit breaker guarding the identity check.
	BreakerThreshold int           `env:"SESSION_BREAKER_THRESHOLD" envDefault:"3"`
	BreakerWindow    time.Duration `env:"SESSION_BREAKER_WINDOW"    envDefault:"60s"`
	BreakerCooldown  time.Duration `env:"SESSION_BREAKER_COOLDOWN"  envDefault:"30s"`

	// Debounce is the minimum spacing between identity checks of one controller.
	// Zero disables debouncing.
	Debounce time.Duration `env:"SESSION_DEBOUNCE" envDefault:"1s"`

	// AuthLoopTTL is how long a detected redirect loop blocks identity checks.
	AuthLoopTTL time.Duration `env:"SESSION_AUTH_LOOP_TTL" envDefault:"30s"`

	// LoginPath is where unauthenticated users are sent.
	LoginPath string `env:"SESSION_LOGIN_PATH" envDefault:"/login"`

	// LandingPath is where users land after logout.
	LandingPath string `env:"SESSION_LANDING_PATH" envDefault:"/"`

	// DashboardPath is the main authenticated page; it is never remembered for post-login restoration.
	DashboardPath string `env:"SESSION_DASHBOARD_PATH" envDefault:"/dashboard"`

	// PublicPaths never trigger a login redirect.
	PublicPaths []string `env:"SESSION_PUBLIC_PATHS" envDefault:"/login,/register,/verify-email,/,/privacy" envSeparator:","`

	// WatchFlags subscribes to flag changes made by other processes (cross-process logout).
	WatchFlags bool `env:"SESSION_WATCH_FLAGS" envDefault:"true"`
}

// DefaultSessionConfig returns a SessionConfig populated with the env defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		StaleTime:           60 * time.Second,
		GCTime:              10 * time.Minute,
		LoginGrace:          2 * time.Second,
		RedirectThrottle:    5 * time.Second,
		LogoutFlagTTL:       5 * time.Second,
		LogoutNavigateDelay: 100 * time.Millisecond,
		IdleTimeout:         60 * time.Minute,
		IdleCheckInterval:   60 * time.Second,
		ActivityKinds:       []string{"mousedown", "keydown", "scroll", "touchstart", "visibilitychange"},
		BreakerThreshold:    3,
		BreakerWindow:       60 * time.Second,
		BreakerCooldown:     30 * time.Second,
		Debounce:            time.Second,
		AuthLoopTTL:         30 * time.Second,
		LoginPath:           "/login",
		LandingPath:         "/",
		DashboardPath:       "/dashboard",
		PublicPaths:         []string{"/login", "/register", "/verify-email", "/", "/privacy"},
		WatchFlags:          true,
	}
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	def := DefaultSessionConfig()
	if s.StaleTime < 0 {
		s.StaleTime = 0
	}
	if s.GCTime < time.Minute {
		s.GCTime = time.Minute
	}
	if s.LoginGrace < 0 {
		s.LoginGrace = 0
	}
	if s.AuthLoopTTL <= 0 {
		s.AuthLoopTTL = def.AuthLoopTTL
	}
	if s.RedirectThrottle <= 0 {
		s.RedirectThrottle = def.RedirectThrottle
	}
	if s.LogoutFlagTTL <= 0 {
		s.LogoutFlagTTL = def.LogoutFlagTTL
	}
	if s.LogoutNavigateDelay < 0 {
		s.LogoutNavigateDelay = 0
	}
	// An idle check faster than once a second buys nothing.
	if s.IdleCheckInterval < time.Second {
		s.IdleCheckInterval = time.Second
	}
	if s.IdleTimeout < s.IdleCheckInterval {
		s.IdleTimeout = s.IdleCheckInterval
	}
	if s.BreakerThreshold < 1 {
		s.BreakerThreshold = def.BreakerThreshold
	}
	if s.BreakerWindow <= 0 {
		s.BreakerWindow = def.BreakerWindow
	}
	if s.BreakerCooldown <= 0 {
		s.BreakerCooldown = def.BreakerCooldown
	}
	if s.Debounce < 0 {
		s.Debounce = 0
	}

	s.LoginPath = normalizePath(s.LoginPath, def.LoginPath)
	s.LandingPath = normalizePath(s.LandingPath, def.LandingPath)
	s.DashboardPath = normalizePath(s.DashboardPath, def.DashboardPath)

	s.ActivityKinds = trimNonEmpty(s.ActivityKinds)
	if len(s.ActivityKinds) == 0 {
		s.ActivityKinds = def.ActivityKinds
	}
	paths := make([]string, 0, len(s.PublicPaths))
	for _, p := range s.PublicPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, normalizePath(p, "/"))
		}
	}
	if !slices.Contains(paths, s.LoginPath) {
		paths = append(paths, s.LoginPath)
	}
	s.PublicPaths = paths
}

// IsPublicPath reports whether path is on the public allow-list.
func (s *SessionConfig) IsPublicPath(path string) bool {
	return slices.Contains(s.PublicPaths, path)
}

func normalizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
