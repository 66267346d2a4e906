package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nreinfusion/onehub-session/config"
	httpx "github.com/nreinfusion/onehub-session/internal/http"
	"github.com/nreinfusion/onehub-session/internal/service"
)

// HTTPServerConfig contains configuration for the dev auth server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Auth    *service.AuthService
	Metrics Metrics
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// BuildHTTPHandler builds the dev auth server router from configuration.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	return httpx.NewRouter(httpx.RouterServices{
		Auth: cfg.Auth,
		Cookies: httpx.CookieConfig{
			SessionName: appCfg.Auth.SessionCookieName,
			Domain:      appCfg.HTTP.CookieDomain,
			Secure:      appCfg.HTTP.CookieSecure,
		},
		CSRF: httpx.CSRFConfig{
			CookieName:   appCfg.Client.CSRFCookieName,
			HeaderName:   appCfg.Client.CSRFHeaderName,
			CookieDomain: appCfg.HTTP.CookieDomain,
			Secure:       appCfg.HTTP.CookieSecure,
		},
		MetricsHandler: cfg.Metrics.Handler,
		MetricsPath:    appCfg.Observability.Metrics.PrometheusPath,
		Metrics:        cfg.Metrics.Sink,
		Clock:          cfg.Clock,
		Logger:         cfg.Logger,
	})
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := ":8080"
	readHeaderTimeout := 5 * time.Second
	if cfg.Config != nil {
		addr = cfg.Config.HTTP.Addr
		readHeaderTimeout = cfg.Config.HTTP.ReadHeaderTimeout
	}
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
