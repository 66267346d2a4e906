package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/circuitbreaker"
	"github.com/nreinfusion/onehub-session/internal/coordination"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
	"github.com/nreinfusion/onehub-session/internal/ports"
	"github.com/nreinfusion/onehub-session/internal/querycache"
)

// IdentityQueryKey is the cache key of the identity query.
const IdentityQueryKey = "/api/auth/user"

// Guard reasons reported when a check is suppressed.
const (
	reasonLoggedOut = "logged_out"
	reasonBreaker   = "circuit_open"
	reasonAuthLoop  = "auth_loop"
	reasonDebounced = "debounced"
	reasonDisabled  = "disabled"
)

// Logout triggers.
const (
	logoutTriggerUser = "user"
	logoutTriggerIdle = "idle"
)

// ErrControllerClosed is returned by operations on a closed controller.
var ErrControllerClosed = errors.New("session controller closed")

// SessionControllerOptions groups dependencies for SessionController.
type SessionControllerOptions struct {
	API ports.IdentityAPI // Required: suite API client

	// Flags is the shared, cross-process flag store. Required.
	Flags *flagstore.Store
	// SessionFlags is per-process scratch storage wiped on logout. Optional.
	SessionFlags *flagstore.Store

	Breaker      *circuitbreaker.Breaker                // Optional: defaults from Config
	Coordination *coordination.State                    // Optional: defaults from Config
	Cache        *querycache.Cache[domainauth.Identity] // Optional: defaults from Config

	Navigator ports.Navigator      // Required
	Notifier  ports.Notifier       // Optional
	Activity  ports.ActivitySource // Optional: without it the idle timer only sees the initial timestamp

	Config   config.SessionConfig
	Branding config.BrandingConfig
	Retry    *RetryPolicy // Optional: DefaultRetryPolicy with Config.LoginGrace

	Clock   clockwork.Clock // Optional: real clock
	Logger  *slog.Logger    // Optional: structured logger
	Metrics metrics.Sink    // Optional: metrics sink
}

// SessionController owns the client-side session lifecycle: it decides when
// the identity check runs, reacts to its outcome with redirects, performs
// logout, and logs the user out after a period of inactivity.
//
// State lives in c.mu-guarded fields. Flag, cache and breaker calls are made
// without holding c.mu because flag backends may call back synchronously.
type SessionController struct {
	api          ports.IdentityAPI
	flags        *flagstore.Store
	sessionFlags *flagstore.Store
	breaker      *circuitbreaker.Breaker
	coord        *coordination.State
	cache        *querycache.Cache[domainauth.Identity]
	nav          ports.Navigator
	notifier     ports.Notifier
	activity     ports.ActivitySource
	cfg          config.SessionConfig
	branding     config.BrandingConfig
	retry        RetryPolicy
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      metrics.Sink

	mu        sync.Mutex
	state     domainauth.State
	user      *domainauth.Identity
	lastErr   error
	disabled  bool
	closed    bool
	idle      *idleWatch
	navTimer  clockwork.Timer
	subs      map[int]func(domainauth.Snapshot)
	nextSub   int
	stopWatch func()

	bg sync.WaitGroup
}

// NewSessionController constructs a SessionController.
func NewSessionController(opts SessionControllerOptions) (*SessionController, error) {
	if opts.API == nil {
		return nil, errors.New("IdentityAPI is required")
	}
	if opts.Flags == nil {
		return nil, errors.New("flag store is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("navigator is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session_controller")

	c := &SessionController{
		api:          opts.API,
		flags:        opts.Flags,
		sessionFlags: opts.SessionFlags,
		breaker:      opts.Breaker,
		coord:        opts.Coordination,
		cache:        opts.Cache,
		nav:          opts.Navigator,
		notifier:     opts.Notifier,
		activity:     opts.Activity,
		cfg:          cfg,
		branding:     opts.Branding,
		clock:        clock,
		logger:       logger,
		metrics:      metrics.OrNop(opts.Metrics),
		state:        domainauth.StateIdle,
		subs:         make(map[int]func(domainauth.Snapshot)),
	}
	if c.sessionFlags == nil {
		c.sessionFlags = flagstore.New(flagstore.Options{Logger: logger, Clock: clock})
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(circuitbreaker.Options{
			Threshold: cfg.BreakerThreshold,
			Window:    cfg.BreakerWindow,
			Cooldown:  cfg.BreakerCooldown,
			Clock:     clock,
			Logger:    logger,
		})
	}
	if c.coord == nil {
		c.coord = coordination.New(coordination.Options{
			Flags:    c.flags,
			Debounce: cfg.Debounce,
			LoopTTL:  cfg.AuthLoopTTL,
			Clock:    clock,
		})
	}
	if c.cache == nil {
		c.cache = querycache.New[domainauth.Identity](querycache.Options{GCTime: cfg.GCTime, Clock: clock})
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	} else {
		c.retry = DefaultRetryPolicy()
		c.retry.LoginGrace = cfg.LoginGrace
	}
	if c.branding.ShortName == "" {
		c.branding.Sanitize()
	}

	if cfg.WatchFlags {
		c.stopWatch = c.flags.Watch(c.onFlagChange)
	}
	return c, nil
}

// Snapshot returns the current session view.
func (c *SessionController) Snapshot() domainauth.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *SessionController) snapshotLocked() domainauth.Snapshot {
	snap := domainauth.Snapshot{State: c.state, Err: c.lastErr}
	switch c.state {
	case domainauth.StateChecking:
		if c.user != nil {
			u := *c.user
			snap.User = &u
		} else {
			snap.IsLoading = true
		}
	case domainauth.StateAuthenticated:
		if c.user != nil {
			u := *c.user
			snap.User = &u
		}
	}
	return snap
}

// Subscribe registers fn for every snapshot change. fn runs on the goroutine
// that caused the change and must not block.
func (c *SessionController) Subscribe(fn func(domainauth.Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *SessionController) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	fns := make([]func(domainauth.Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Check runs the identity check the way a page mount does: it honours every
// guard, serves a fresh cached identity without a network call, and retries
// transient failures per the retry policy.
func (c *SessionController) Check(ctx context.Context) (domainauth.Snapshot, error) {
	return c.check(ctx, false)
}

// RefreshUser forces a new identity check by invalidating the cached result.
// The forced check is not retried; if it fails the user is notified.
func (c *SessionController) RefreshUser(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.disabled = false
	c.mu.Unlock()

	if c.coord.LoopDetected() {
		c.coord.ResetAuthLoop()
	}
	c.cache.Invalidate(IdentityQueryKey)

	_, err := c.check(ctx, true)
	if err != nil && !apperrors.IsCircuitOpen(err) {
		c.notify(ports.Notification{
			Title:       c.branding.Subject("Refresh Error"),
			Description: "Failed to refresh user data. Please try again.",
			Variant:     ports.NotificationDestructive,
		})
	}
	return err
}

func (c *SessionController) check(ctx context.Context, force bool) (domainauth.Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrControllerClosed
	}
	disabled := c.disabled
	c.mu.Unlock()

	if reason := c.guardReason(disabled); reason != "" {
		return c.suppress(reason)
	}

	c.mu.Lock()
	c.state = domainauth.StateChecking
	c.lastErr = nil
	c.mu.Unlock()
	c.publish()

	opts := querycache.FetchOptions{StaleTime: c.cfg.StaleTime, Force: force}
	if !force {
		opts.Retry = c.retryFunc
	}

	start := c.clock.Now()
	user, err := c.cache.Fetch(ctx, IdentityQueryKey, c.fetchIdentity, opts)
	elapsed := c.clock.Since(start)

	if errors.Is(err, querycache.ErrRemoved) {
		// A logout landed while the check was in flight; its state stands.
		return c.Snapshot(), apperrors.CircuitOpen("session cleared during check")
	}
	if err != nil {
		metrics.EmitIdentityCheck(c.metrics, metrics.IdentityCheckMetric{Result: metrics.ResultError, Duration: elapsed, Err: err})
		return c.handleFailure(err)
	}

	metrics.EmitIdentityCheck(c.metrics, metrics.IdentityCheckMetric{Result: metrics.ResultSuccess, Duration: elapsed})
	c.mu.Lock()
	u := user
	c.user = &u
	c.state = domainauth.StateAuthenticated
	c.lastErr = nil
	c.disabled = false
	started := c.startIdleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if started {
		c.flags.SetTime(flagstore.KeyLastActiveTime, c.clock.Now())
	}
	c.publish()
	return snap, nil
}

// guardReason returns why a check must not reach the network, or "".
func (c *SessionController) guardReason(disabled bool) string {
	switch {
	case c.justLoggedOut():
		return reasonLoggedOut
	case c.breaker.IsOpen():
		return reasonBreaker
	case c.coord.LoopDetected():
		return reasonAuthLoop
	case c.coord.ShouldPreventAuthRequest():
		return reasonDebounced
	case disabled:
		return reasonDisabled
	}
	return ""
}

func (c *SessionController) justLoggedOut() bool {
	v, ok := c.flags.Get(flagstore.KeyJustLoggedOut)
	return ok && v == "true"
}

// suppress reports a definitive result for a check that was not issued.
// A debounced or disabled check keeps whatever is already known; the other
// guards force the circuit-open view.
func (c *SessionController) suppress(reason string) (domainauth.Snapshot, error) {
	metrics.EmitIdentityCheck(c.metrics, metrics.IdentityCheckMetric{Result: metrics.ResultSkipped, Reason: reason})

	c.mu.Lock()
	known := c.state != domainauth.StateIdle && c.state != domainauth.StateCircuitOpen
	if (reason == reasonDebounced || reason == reasonDisabled) && known {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, snap.Err
	}

	err := apperrors.CircuitOpen(reason)
	c.state = domainauth.StateCircuitOpen
	c.user = nil
	c.lastErr = err
	c.stopIdleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if reason != reasonDebounced && reason != reasonDisabled {
		metrics.EmitCircuitOpen(c.metrics, reason)
	}
	c.logger.Debug("identity check suppressed", "reason", reason)
	c.publish()
	return snap, err
}

// fetchIdentity is one network attempt. Every attempt counts for debounce;
// only transport failures count against the breaker.
func (c *SessionController) fetchIdentity(ctx context.Context) (domainauth.Identity, error) {
	c.coord.RecordAuthRequest()

	user, err := c.api.FetchIdentity(ctx)
	if err != nil {
		if apperrors.IsNetwork(err) {
			c.breaker.RecordFailure()
		}
		return domainauth.Identity{}, err
	}

	c.breaker.RecordSuccess()
	c.flags.Remove(flagstore.AuthLoopKeys...)
	return user, nil
}

func (c *SessionController) retryFunc(retries int, err error) (bool, time.Duration) {
	if c.breaker.IsOpen() {
		return false, 0
	}
	d := c.retry.Decide(apperrors.KindOf(err), retries, c.sinceLogin())
	if d.Retry {
		c.logger.Debug("retrying identity check", "retries", retries, "delay", d.Delay, "error", err)
	}
	return d.Retry, d.Delay
}

func (c *SessionController) sinceLogin() time.Duration {
	at, ok := c.flags.GetTime(flagstore.KeyLoginAt)
	if !ok {
		return NoLogin
	}
	since := c.clock.Since(at)
	if since < 0 {
		return 0
	}
	return since
}

func (c *SessionController) handleFailure(err error) (domainauth.Snapshot, error) {
	kind := apperrors.KindOf(err)

	c.mu.Lock()
	c.lastErr = err
	switch {
	case kind == apperrors.ErrCodeNetwork && c.breaker.IsOpen():
		c.state = domainauth.StateCircuitOpen
		c.user = nil
	case kind == apperrors.ErrCodeUnauthorized || kind == apperrors.ErrCodeUserNotFound:
		c.state = domainauth.StateUnauthenticated
		c.user = nil
	case c.user != nil:
		// Transient failure with a known identity: keep serving it.
		c.state = domainauth.StateAuthenticated
	default:
		c.state = domainauth.StateUnauthenticated
	}
	if c.state != domainauth.StateAuthenticated {
		c.stopIdleLocked()
	}
	state := c.state
	c.mu.Unlock()

	if state == domainauth.StateCircuitOpen {
		metrics.EmitCircuitOpen(c.metrics, reasonBreaker)
	}
	c.logger.Info("identity check failed", "kind", kind, "state", state, "error", err)

	if kind == apperrors.ErrCodeUnauthorized {
		c.cache.Remove(IdentityQueryKey)
		c.redirectToLogin()
	}

	c.publish()
	return c.Snapshot(), err
}

// redirectToLogin sends the user to the login page unless the current page is
// public, at most once per RedirectThrottle across every process sharing the flags.
func (c *SessionController) redirectToLogin() {
	path := c.nav.CurrentPath()
	if c.cfg.IsPublicPath(path) {
		return
	}

	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()

	now := c.clock.Now()
	if last, ok := c.flags.GetTime(flagstore.KeyLastAuthRedirect); ok && now.Sub(last) <= c.cfg.RedirectThrottle {
		// A second rejection inside the window means pages are bouncing.
		c.coord.MarkAuthLoop()
		c.logger.Warn("login redirect throttled", "path", path, "since_last", now.Sub(last))
		return
	}

	c.flags.SetTime(flagstore.KeyLastAuthRedirect, now)
	remember := path != c.cfg.DashboardPath
	if remember {
		c.flags.Set(flagstore.KeyRedirectAfterLogin, path)
	} else {
		c.flags.Remove(flagstore.KeyRedirectAfterLogin)
	}

	metrics.EmitRedirect(c.metrics, remember)
	c.logger.Info("redirecting to login", "from", path, "to", c.cfg.LoginPath)
	c.nav.Navigate(c.cfg.LoginPath)
}

// Logout ends the session locally at once and asks the server to end it in the
// background. It never fails and may be called repeatedly.
func (c *SessionController) Logout(ctx context.Context) {
	c.logout(ctx, logoutTriggerUser)
}

func (c *SessionController) logout(ctx context.Context, trigger string) {
	// (a) Block identity checks while the logout settles.
	c.flags.SetTemporary(flagstore.KeyJustLoggedOut, "true", c.cfg.LogoutFlagTTL)

	c.notify(ports.Notification{
		Title:       "Logging out...",
		Description: "Redirecting...",
		Duration:    300 * time.Millisecond,
	})

	// (b) Drop the identity so observers see the logged-out view immediately.
	c.cache.Remove(IdentityQueryKey)
	c.mu.Lock()
	c.user = nil
	c.state = domainauth.StateCircuitOpen
	c.lastErr = apperrors.CircuitOpen(reasonLoggedOut)
	c.stopIdleLocked()
	c.mu.Unlock()
	c.publish()

	// (c) Best-effort server logout; its outcome is only logged.
	serverCtx := context.WithoutCancel(ctx)
	c.goBackground(func() { c.serverLogout(serverCtx, trigger) })

	// (d) Wipe session-scoped flags, per-process storage and cookies.
	removed := c.flags.RemoveMatching(flagstore.IsSessionScoped)
	c.sessionFlags.Clear()
	c.api.ClearCookies()
	c.logger.Debug("local session cleared", "flags_removed", len(removed))

	// (e) Navigate once the notification has had a moment to render.
	c.mu.Lock()
	if c.navTimer != nil {
		c.navTimer.Stop()
	}
	if !c.closed {
		c.navTimer = c.clock.AfterFunc(c.cfg.LogoutNavigateDelay, func() {
			c.nav.Navigate(c.cfg.LandingPath)
		})
	}
	c.mu.Unlock()
}

func (c *SessionController) serverLogout(ctx context.Context, trigger string) {
	result := "ok"
	if err := c.api.Logout(ctx); err != nil {
		result = "failed"
		c.logger.Warn("server logout failed", "trigger", trigger, "error", err)
	} else {
		c.logger.Info("server logout completed", "trigger", trigger)
	}
	metrics.EmitLogout(c.metrics, trigger, result)
}

// onFlagChange reacts to writes made by other processes sharing the flags.
// It runs asynchronously so backends may notify while their writer holds locks.
func (c *SessionController) onFlagChange(key string) {
	switch key {
	case flagstore.KeyJustLoggedOut, flagstore.KeyLoginAt:
	default:
		return
	}
	c.goBackground(func() {
		switch key {
		case flagstore.KeyJustLoggedOut:
			if c.justLoggedOut() {
				c.dropRemoteSession()
			}
		case flagstore.KeyLoginAt:
			if c.flags.Has(flagstore.KeyLoginAt) {
				c.adoptRemoteLogin()
			}
		}
	})
}

// goBackground runs fn on a goroutine tracked by Close. It is a no-op once
// the controller is closed.
func (c *SessionController) goBackground(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn()
	}()
	return true
}

// dropRemoteSession applies a logout performed by another process.
func (c *SessionController) dropRemoteSession() {
	c.mu.Lock()
	if c.closed || c.state == domainauth.StateCircuitOpen || c.state == domainauth.StateIdle {
		c.mu.Unlock()
		return
	}
	c.user = nil
	c.state = domainauth.StateCircuitOpen
	c.lastErr = apperrors.CircuitOpen(reasonLoggedOut)
	c.stopIdleLocked()
	c.mu.Unlock()

	c.cache.Remove(IdentityQueryKey)
	c.logger.Info("session ended by another process")
	c.publish()
}

// adoptRemoteLogin re-checks the identity after another process logged in.
func (c *SessionController) adoptRemoteLogin() {
	c.mu.Lock()
	if c.closed || c.state == domainauth.StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.disabled = false
	c.mu.Unlock()

	if c.coord.LoopDetected() {
		c.coord.ResetAuthLoop()
	}
	c.cache.Invalidate(IdentityQueryKey)
	if _, err := c.check(context.Background(), false); err != nil {
		c.logger.Debug("re-check after remote login failed", "error", err)
	}
}

func (c *SessionController) notify(n ports.Notification) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

// Close stops background work and waits for an in-flight server logout.
// A pending post-logout navigation is cancelled.
func (c *SessionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopIdleLocked()
	if c.navTimer != nil {
		c.navTimer.Stop()
		c.navTimer = nil
	}
	stopWatch := c.stopWatch
	c.stopWatch = nil
	c.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	c.bg.Wait()
}
