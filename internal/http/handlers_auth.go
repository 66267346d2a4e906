package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*domainauth.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// CookieConfig controls the attributes of the cookies the server sets.
type CookieConfig struct {
	SessionName string
	Domain      string
	// Secure forces the Secure attribute even for plain-HTTP requests.
	Secure bool
}

func (c CookieConfig) sessionName() string {
	if c.SessionName == "" {
		return DefaultSessionCookieName
	}
	return c.SessionName
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieConfig
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock.Now()
	}
	return time.Now()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      domainauth.Identity `json:"user"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Login verifies credentials and starts a cookie session.
// POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, domainauth.ErrInvalidCredentials) && !apperrors.IsValidation(err) {
			h.logger().ErrorContext(r.Context(), "login failed", "error", err)
		}
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, *session)
	WriteJSON(w, http.StatusOK, loginResponse{User: session.Identity, ExpiresAt: session.ExpiresAt})
}

// User returns the identity bound to the session cookie.
// GET /api/auth/user and GET /api/auth/me.
func (h *AuthHandlers) User(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, session.Identity)
}

// Logout ends the server-side session and clears the cookie. It succeeds
// without a session so repeated logouts are harmless.
// POST /api/auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	name := h.Cookies.sessionName()
	if sessionCookie, err := r.Cookie(name); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), sessionCookie.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}

	h.clearCookie(w, r, name)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *AuthHandlers) secure(r *http.Request) bool {
	return h.Cookies.Secure || r.TLS != nil || isForwardedHTTPS(r)
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors the attributes used when setting the cookie.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.secure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	maxAge := int(s.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookies.sessionName(),
		Value:    s.ID,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// sessionID returns the session cookie value, trimmed.
func sessionID(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
