// Package suiteapi is the HTTP client for the suite's auth endpoints. It plays
// the browser's part: it owns the cookie jar, primes and sends the CSRF token,
// and classifies responses into the session error kinds.
package suiteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/nreinfusion/onehub-session/config"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

// API paths.
const (
	PathHealth = "/api/health"
	PathLogin  = "/api/auth/login"
	PathUser   = "/api/auth/user"
	PathMe     = "/api/auth/me"
	PathLogout = "/api/auth/logout"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

var _ ports.IdentityAPI = (*Client)(nil)

// Options groups dependencies for Client.
type Options struct {
	Config config.ClientConfig
	// Flags receives the auth401Events log and, when enabled, the persisted cookie jar. Optional.
	Flags *flagstore.Store
	// Transport overrides the HTTP transport. Optional.
	Transport http.RoundTripper
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Client talks to the suite API on behalf of one session controller.
type Client struct {
	cfg    config.ClientConfig
	base   *url.URL
	http   *http.Client
	jar    *sessionJar
	flags  *flagstore.Store
	clock  clockwork.Clock
	logger *slog.Logger

	csrf singleflight.Group

	// retired holds the cookies dropped by the last ClearCookies. A logout
	// racing the wipe still carries the session it is meant to end.
	mu      sync.Mutex
	retired []*http.Cookie
}

// New constructs a Client. The identity JMESPath expression is validated here.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	cfg.Sanitize()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https: %q", cfg.BaseURL)
	}
	if cfg.IdentityJMESPath != "" {
		if _, err := jmespath.Compile(cfg.IdentityJMESPath); err != nil {
			return nil, fmt.Errorf("compile identity path: %w", err)
		}
	}

	c := &Client{
		cfg:    cfg,
		base:   base,
		jar:    newSessionJar(),
		flags:  opts.Flags,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "suite_api")
	c.http = &http.Client{
		Transport: opts.Transport,
		Jar:       c.jar,
		// A redirect from an API endpoint means the session is gone; it is
		// classified, never followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if c.persistCookies() {
		if raw, ok := c.flags.Get(flagstore.KeySessionCookies); ok {
			if err := c.jar.restore(c.base, raw); err != nil {
				c.logger.Warn("discarding unreadable persisted cookies", "error", err)
				c.flags.Remove(flagstore.KeySessionCookies)
			}
		}
	}
	return c, nil
}

func (c *Client) persistCookies() bool {
	return c.cfg.PersistCookies && c.flags != nil
}

func (c *Client) saveCookies() {
	if !c.persistCookies() {
		return
	}
	if raw, ok := c.jar.export(c.base); ok {
		c.flags.Set(flagstore.KeySessionCookies, raw)
	} else {
		c.flags.Remove(flagstore.KeySessionCookies)
	}
}

func (c *Client) url(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// FetchIdentity calls GET /api/auth/user and classifies the outcome:
// 2xx is the identity, 401/403 and 301/302 are Unauthorized, 404 is
// UserNotFound, transport failures and timeouts are Network, anything else is HTTP.
func (c *Client) FetchIdentity(ctx context.Context) (domainauth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.IdentityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(PathUser), nil)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build identity request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainauth.Identity{}, apperrors.Network(err)
	}
	defer resp.Body.Close()
	c.saveCookies()

	if err := classifyStatus(resp.StatusCode); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			c.recordUnauthorized()
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return domainauth.Identity{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainauth.Identity{}, apperrors.Network(err)
	}
	return c.decodeIdentity(body, resp.StatusCode)
}

// classifyStatus maps a non-2xx status to its error kind.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(status)
	case status == http.StatusMovedPermanently, status == http.StatusFound:
		return apperrors.Unauthorized(status)
	case status == http.StatusNotFound:
		return apperrors.UserNotFound()
	default:
		return apperrors.HTTPStatus(status)
	}
}

// decodeIdentity extracts the identity from a 2xx body. A null or ID-less
// identity means the server answered without a session.
func (c *Client) decodeIdentity(body []byte, status int) (domainauth.Identity, error) {
	invalid := func(err error) error {
		return &apperrors.AppError{Code: apperrors.ErrCodeHTTP, Message: "INVALID_IDENTITY", Cause: err, Status: status}
	}

	if c.cfg.IdentityJMESPath != "" {
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return domainauth.Identity{}, invalid(err)
		}
		selected, err := jmespath.Search(c.cfg.IdentityJMESPath, doc)
		if err != nil {
			return domainauth.Identity{}, invalid(err)
		}
		if body, err = json.Marshal(selected); err != nil {
			return domainauth.Identity{}, invalid(err)
		}
	}

	var identity *domainauth.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return domainauth.Identity{}, invalid(err)
	}
	if identity == nil || identity.ID == "" {
		return domainauth.Identity{}, apperrors.Unauthorized(status)
	}
	return *identity, nil
}

// recordUnauthorized appends a timestamp to the auth401Events log.
func (c *Client) recordUnauthorized() {
	c.logger.Warn("identity check rejected", "status", http.StatusUnauthorized)
	if c.flags == nil {
		return
	}
	var events []int64
	if raw, ok := c.flags.Get(flagstore.KeyAuth401Events); ok {
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			events = nil
		}
	}
	events = append(events, c.clock.Now().UnixMilli())
	if n := len(events) - c.cfg.Auth401Limit; n > 0 {
		events = events[n:]
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	c.flags.Set(flagstore.KeyAuth401Events, string(raw))
}

// Auth401Events returns the recorded 401 timestamps, oldest first.
func (c *Client) Auth401Events() []time.Time {
	if c.flags == nil {
		return nil
	}
	raw, ok := c.flags.Get(flagstore.KeyAuth401Events)
	if !ok {
		return nil
	}
	var events []int64
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil
	}
	out := make([]time.Time, 0, len(events))
	for _, ms := range events {
		out = append(out, time.UnixMilli(ms))
	}
	return out
}

// Logout calls POST /api/auth/logout with the CSRF header, bounded by LogoutTimeout.
func (c *Client) Logout(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LogoutTimeout)
	defer cancel()

	c.mu.Lock()
	carry := c.retired
	c.retired = nil
	c.mu.Unlock()

	resp, err := c.do(ctx, http.MethodPost, PathLogout, nil, carry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return classifyStatus(resp.StatusCode)
}

// ClearCookies drops every cookie, including the persisted copy.
func (c *Client) ClearCookies() {
	var retired []*http.Cookie
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name != c.cfg.CSRFCookieName {
			retired = append(retired, ck)
		}
	}
	c.mu.Lock()
	if len(retired) > 0 {
		c.retired = retired
	}
	c.mu.Unlock()

	c.jar.Reset()
	if c.flags != nil {
		c.flags.Remove(flagstore.KeySessionCookies)
	}
}

// LoginResponse is the body of a successful POST /api/auth/login.
type LoginResponse struct {
	User      domainauth.Identity `json:"user"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Login calls POST /api/auth/login. On success it records the login time that
// opens the identity check's login grace window and lifts the logout marker.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.IdentityTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode login request")
	}
	resp, err := c.Do(ctx, http.MethodPost, PathLogin, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, err
	}
	var out LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &apperrors.AppError{Code: apperrors.ErrCodeHTTP, Message: "INVALID_LOGIN_RESPONSE", Cause: err, Status: resp.StatusCode}
	}

	c.mu.Lock()
	c.retired = nil
	c.mu.Unlock()
	if c.flags != nil {
		c.flags.Remove(flagstore.AuthLoopKeys...)
		c.flags.SetTime(flagstore.KeyLoginAt, c.clock.Now())
	}
	c.logger.InfoContext(ctx, "logged in", "user_id", out.User.ID)
	return &out, nil
}

// Do sends a JSON request with the session cookies. State-changing methods
// carry the CSRF header; a 403 blaming the token re-primes it and retries once.
// The caller owns the response body. Only transport failures are returned as
// errors.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.do(ctx, method, path, body, nil)
}

// do is Do with extra cookies sent alongside the jar's.
func (c *Client) do(ctx context.Context, method, path string, body []byte, carry []*http.Cookie) (*http.Response, error) {
	needsCSRF := requiresCSRF(method)
	token := ""
	if needsCSRF {
		token = c.ensureCSRF(ctx)
	}

	resp, err := c.send(ctx, method, path, body, token, carry)
	if err != nil || !needsCSRF || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}

	msg, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if readErr != nil || !strings.Contains(strings.ToLower(string(msg)), "csrf") {
		resp.Body = io.NopCloser(bytes.NewReader(msg))
		return resp, nil
	}

	c.logger.Info("csrf token rejected, refreshing", "path", path)
	c.jar.drop(c.base, c.cfg.CSRFCookieName)
	token = c.ensureCSRF(ctx)
	if token == "" {
		resp.Body = io.NopCloser(bytes.NewReader(msg))
		return resp, nil
	}
	return c.send(ctx, method, path, body, token, carry)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string, carry []*http.Cookie) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(c.cfg.CSRFHeaderName, token)
	}
	for _, ck := range carry {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	c.saveCookies()
	return resp, nil
}

func requiresCSRF(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// ensureCSRF returns the CSRF token, priming the cookie with GET /api/health
// when it is missing. Concurrent callers share one priming request. Failure
// yields "" and the request proceeds without the header.
func (c *Client) ensureCSRF(ctx context.Context) string {
	if token := c.jar.value(c.base, c.cfg.CSRFCookieName); token != "" {
		return token
	}

	v, _, _ := c.csrf.Do("prime", func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CSRFTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(pctx, http.MethodGet, c.url(PathHealth), nil)
		if err != nil {
			return "", err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("csrf priming failed", "error", err)
			return "", nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		c.saveCookies()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", nil
		}
		return c.jar.value(c.base, c.cfg.CSRFCookieName), nil
	})
	token, _ := v.(string)
	return token
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || apperrors.IsNetwork(err)
}
