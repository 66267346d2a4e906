package httpx

// Route paths served by the dev auth server. They match the paths the suite
// API client calls.
const (
	PathHealth     = "/api/health"
	PathAuthLogin  = "/api/auth/login"
	PathAuthUser   = "/api/auth/user"
	PathAuthMe     = "/api/auth/me"
	PathAuthLogout = "/api/auth/logout"
	PathHealthz    = "/healthz"
)

// DefaultSessionCookieName names the session cookie when none is configured.
const DefaultSessionCookieName = "session_id"
