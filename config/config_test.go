package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if !reflect.DeepEqual(cfg.Session, DefaultSessionConfig()) {
		t.Fatalf("unexpected session defaults:\nexpected: %#v\ngot:      %#v", DefaultSessionConfig(), cfg.Session)
	}
	if cfg.Client.IdentityTimeout != 8*time.Second || cfg.Client.LogoutTimeout != 2*time.Second {
		t.Fatalf("unexpected client timeouts: %v / %v", cfg.Client.IdentityTimeout, cfg.Client.LogoutTimeout)
	}
	if cfg.Client.CSRFCookieName != "csrf_token" || cfg.Client.CSRFHeaderName != "X-CSRF-Token" {
		t.Fatalf("unexpected csrf names: %q / %q", cfg.Client.CSRFCookieName, cfg.Client.CSRFHeaderName)
	}
	if cfg.Flags.Backend != FlagBackendFile {
		t.Fatalf("expected file backend by default, got %q", cfg.Flags.Backend)
	}
	if cfg.Auth.SessionStore != SessionStoreMemory {
		t.Fatalf("expected memory session store by default, got %q", cfg.Auth.SessionStore)
	}
}

func TestAppConfig_ParseSessionEnv(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("SESSION_IDLE_CHECK_INTERVAL", "10s")
	t.Setenv("SESSION_ACTIVITY_KINDS", "keydown, scroll")
	t.Setenv("SESSION_PUBLIC_PATHS", "/,privacy")
	t.Setenv("SESSION_LOGIN_PATH", "signin")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Session.IdleTimeout != 30*time.Minute || cfg.Session.IdleCheckInterval != 10*time.Second {
		t.Fatalf("unexpected idle settings: %v / %v", cfg.Session.IdleTimeout, cfg.Session.IdleCheckInterval)
	}
	if !reflect.DeepEqual(cfg.Session.ActivityKinds, []string{"keydown", "scroll"}) {
		t.Fatalf("unexpected activity kinds: %#v", cfg.Session.ActivityKinds)
	}
	if cfg.Session.LoginPath != "/signin" {
		t.Fatalf("expected login path to be normalised, got %q", cfg.Session.LoginPath)
	}
	expected := []string{"/", "/privacy", "/signin"}
	if !reflect.DeepEqual(cfg.Session.PublicPaths, expected) {
		t.Fatalf("unexpected public paths:\nexpected: %#v\ngot:      %#v", expected, cfg.Session.PublicPaths)
	}
	if !cfg.Session.IsPublicPath("/signin") || cfg.Session.IsPublicPath("/settings") {
		t.Fatalf("unexpected public path classification")
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_SESSION_STORE", "redis")
	t.Setenv("AUTH_SESSION_TTL", "2h")
	t.Setenv("DEV_USER_EMAIL", " Admin@Example.com ")
	t.Setenv("DEV_USER_GROUPS", "admins;marketing")
	t.Setenv("DEV_USER_PASSWORD_HASH", "$2a$10$abc")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.SessionStore != SessionStoreRedis {
		t.Fatalf("expected redis session store, got %q", cfg.Auth.SessionStore)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.DevUser.Email != "admin@example.com" {
		t.Fatalf("expected email to be normalised, got %q", cfg.Auth.DevUser.Email)
	}
	if !reflect.DeepEqual(cfg.Auth.DevUser.Groups, []string{"admins", "marketing"}) {
		t.Fatalf("unexpected groups: %#v", cfg.Auth.DevUser.Groups)
	}
	if cfg.Auth.DevUser.PasswordHash != "$2a$10$abc" {
		t.Fatalf("unexpected password hash: %q", cfg.Auth.DevUser.PasswordHash)
	}
}

func TestFlagBackend_UnmarshalText(t *testing.T) {
	var b FlagBackend
	if err := b.UnmarshalText([]byte(" Redis ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != FlagBackendRedis {
		t.Fatalf("expected redis, got %q", b)
	}
	if err := b.UnmarshalText([]byte("etcd")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestAppConfig_ParseInvalidBackend(t *testing.T) {
	t.Setenv("FLAGS_BACKEND", "sqlite")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected parse error for invalid backend")
	}
}

func TestSessionConfig_Sanitize(t *testing.T) {
	cfg := SessionConfig{
		IdleTimeout:       time.Millisecond,
		IdleCheckInterval: 0,
		BreakerThreshold:  0,
		GCTime:            time.Second,
		Debounce:          0,
	}

	cfg.Sanitize()

	if cfg.Debounce != 0 {
		t.Fatalf("expected zero debounce to be kept, got %v", cfg.Debounce)
	}
	if cfg.AuthLoopTTL != 30*time.Second {
		t.Fatalf("expected default auth loop ttl, got %v", cfg.AuthLoopTTL)
	}

	if cfg.IdleCheckInterval != time.Second {
		t.Fatalf("expected idle check interval floor, got %v", cfg.IdleCheckInterval)
	}
	if cfg.IdleTimeout != time.Second {
		t.Fatalf("expected idle timeout to be at least one interval, got %v", cfg.IdleTimeout)
	}
	if cfg.BreakerThreshold != 3 {
		t.Fatalf("expected default breaker threshold, got %d", cfg.BreakerThreshold)
	}
	if cfg.GCTime != time.Minute {
		t.Fatalf("expected gc time floor, got %v", cfg.GCTime)
	}
	if cfg.LoginPath != "/login" || cfg.LandingPath != "/" || cfg.DashboardPath != "/dashboard" {
		t.Fatalf("unexpected paths: %q %q %q", cfg.LoginPath, cfg.LandingPath, cfg.DashboardPath)
	}
	if len(cfg.ActivityKinds) != 5 {
		t.Fatalf("expected default activity kinds, got %#v", cfg.ActivityKinds)
	}
	if !reflect.DeepEqual(cfg.PublicPaths, []string{"/login"}) {
		t.Fatalf("expected login path to be added to public paths, got %#v", cfg.PublicPaths)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, Driver: MetricsDriverPrometheus}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatalf("expected prometheus metrics to stay enabled without a statsd address")
	}
}

func TestLoggingConfig_Sanitize(t *testing.T) {
	cfg := LoggingConfig{Level: " DEBUG ", MaxSizeMB: 0}
	cfg.Sanitize()
	if cfg.Level != "debug" || cfg.MaxSizeMB != 1 {
		t.Fatalf("unexpected logging config: %#v", cfg)
	}

	cfg = LoggingConfig{Level: "verbose"}
	cfg.Sanitize()
	if cfg.Level != "info" {
		t.Fatalf("expected unknown level to fall back to info, got %q", cfg.Level)
	}
}

func TestBrandingConfig_Subject(t *testing.T) {
	b := BrandingConfig{AppName: "NRE Infusion OneHub Suite", ShortName: "OneHub Suite"}
	if got := b.Subject("Session expired"); got != "[OneHub Suite] Session expired" {
		t.Fatalf("unexpected subject: %q", got)
	}

	b = BrandingConfig{AppName: "Acme"}
	b.Sanitize()
	if b.ShortName != "Acme" {
		t.Fatalf("expected short name to fall back to app name, got %q", b.ShortName)
	}
}
