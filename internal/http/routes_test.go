package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/adapters/suiteapi"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	mockauth "github.com/nreinfusion/onehub-session/internal/mocks/auth"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
	"github.com/nreinfusion/onehub-session/internal/service"
)

type routerEnv struct {
	srv      *httptest.Server
	clock    *clockwork.FakeClock
	sessions *mockauth.MemorySessionStore
	registry *prometheus.Registry
}

func setupRouter(t *testing.T) *routerEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	sessions := mockauth.NewMemorySessionStore()
	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Verifier: mockauth.NewStubVerifier(),
		Sessions: sessions,
		Roles:    mockauth.FixedRole(domainauth.RoleMarketing),
		TTL:      30 * time.Minute,
		Clock:    clock,
	})
	registry := prometheus.NewRegistry()

	handler := NewRouter(RouterServices{
		Auth:           authSvc,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Metrics:        metrics.NewPrometheusSink(registry, "onehub", nil),
		Clock:          clock,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &routerEnv{srv: srv, clock: clock, sessions: sessions, registry: registry}
}

func (e *routerEnv) client(t *testing.T) *suiteapi.Client {
	t.Helper()
	c, err := suiteapi.New(suiteapi.Options{
		Config: config.ClientConfig{BaseURL: e.srv.URL},
		Flags:  flagstore.New(flagstore.Options{}),
		Clock:  e.clock,
	})
	require.NoError(t, err)
	return c
}

func TestRouter_LoginIdentityLogout(t *testing.T) {
	env := setupRouter(t)
	client := env.client(t)

	_, err := client.FetchIdentity(t.Context())
	require.True(t, apperrors.IsUnauthorized(err), "no session yet: %v", err)

	resp, err := client.Login(t.Context(), "mock.user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", resp.User.ID)
	assert.Equal(t, 1, env.sessions.Len())

	identity, err := client.FetchIdentity(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "mock.user@example.com", identity.Email)
	assert.Equal(t, domainauth.RoleMarketing, identity.Role)

	require.NoError(t, client.Logout(t.Context()))
	assert.Equal(t, 0, env.sessions.Len())

	_, err = client.FetchIdentity(t.Context())
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestRouter_LoginRejectsBadPassword(t *testing.T) {
	env := setupRouter(t)
	client := env.client(t)

	_, err := client.Login(t.Context(), "mock.user@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusOf(err))
	assert.Equal(t, 0, env.sessions.Len())
}

func TestRouter_SessionExpires(t *testing.T) {
	env := setupRouter(t)
	client := env.client(t)

	_, err := client.Login(t.Context(), "mock.user@example.com", "secret")
	require.NoError(t, err)

	env.clock.Advance(31 * time.Minute)
	_, err = client.FetchIdentity(t.Context())
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, 0, env.sessions.Len())
}

func TestRouter_PostWithoutCSRFIsRejected(t *testing.T) {
	env := setupRouter(t)

	resp, err := http.Post(env.srv.URL+PathAuthLogin, "application/json",
		strings.NewReader(`{"email":"mock.user@example.com","password":"secret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotNil(t, findCookie(resp, DefaultCSRFCookieName), "rejection still issues a token")
}

func TestRouter_UnknownRouteAndRequestID(t *testing.T) {
	env := setupRouter(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/nope", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := setupRouter(t)

	resp, err := http.Get(env.srv.URL + PathHealth)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	families, err := env.registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "onehub_http_request_total")
}
