package httpx

import (
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth    AuthServiceInterface
	Cookies CookieConfig
	CSRF    CSRFConfig

	// MetricsHandler, when set, is mounted at MetricsPath (default /metrics).
	MetricsHandler http.Handler
	MetricsPath    string
	Metrics        metrics.Sink

	Clock  clockwork.Clock
	Logger *slog.Logger // Logger for request and handler errors (optional)
}

// NewRouter creates the dev auth server handler: the suite's auth endpoints
// behind request logging, panic recovery and double-submit CSRF protection.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:     services.Auth,
		Cookies: services.Cookies,
		Clock:   services.Clock,
		Logger:  logger,
	}
	registerHealthRoutes(mux)
	registerAuthRoutes(mux, authHandlers)

	if services.MetricsHandler != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "route not found"})
	})

	return Chain(mux,
		RequestID(),
		Logging(logger, services.Metrics),
		Recover(logger),
		CSRFProtection(services.CSRF),
	)
}

func registerHealthRoutes(mux *http.ServeMux) {
	mux.Handle("GET "+PathHealth, http.HandlerFunc(healthHandler))
	mux.Handle("HEAD "+PathHealth, http.HandlerFunc(healthHandler))
	mux.Handle("GET "+PathHealthz, http.HandlerFunc(healthHandler))
	mux.Handle("HEAD "+PathHealthz, http.HandlerFunc(healthHandler))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	withSession := SessionAuth(h)
	mux.HandleFunc("POST "+PathAuthLogin, h.Login)
	mux.Handle("GET "+PathAuthUser, withSession(http.HandlerFunc(h.User)))
	mux.Handle("GET "+PathAuthMe, withSession(http.HandlerFunc(h.User)))
	mux.HandleFunc("POST "+PathAuthLogout, h.Logout)
}
