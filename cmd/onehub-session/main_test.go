package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/bootstrap"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

func init() {
	color.NoColor = true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPrintUsageListsCommands(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	require.NoError(t, printUsage(os.Stdout))

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "Usage: onehub-session <command> [flags]")
	for name := range commands() {
		require.Contains(t, outStr, name)
	}
	require.Less(t, strings.Index(outStr, "flags"), strings.Index(outStr, "whoami"), "commands are sorted")
}

func TestParseLoginFlags(t *testing.T) {
	opts, err := parseLoginFlags([]string{"--email", "  dev@example.com ", "--password", "pw"})
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", opts.Email)
	assert.Equal(t, "pw", opts.Password)

	_, err = parseLoginFlags(nil)
	require.ErrorIs(t, err, errEmailRequired)
}

func TestParseWatchFlags(t *testing.T) {
	cfg := config.DefaultSessionConfig()

	opts, err := parseWatchFlags(nil, &cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.StaleTime, opts.Interval)
	assert.Equal(t, "/dashboard", opts.Path)
	assert.True(t, opts.Stdin)

	_, err = parseWatchFlags([]string{"--interval", "10ms"}, &cfg)
	require.Error(t, err)
}

func TestParseResetFlagsFlags(t *testing.T) {
	opts, err := parseResetFlagsFlags([]string{"--all", "--yes"})
	require.NoError(t, err)
	assert.True(t, opts.All)
	assert.True(t, opts.Yes)

	_, err = parseResetFlagsFlags([]string{"extra"})
	require.Error(t, err)
}

func TestPromptPassword(t *testing.T) {
	var out bytes.Buffer
	pw, err := promptPassword(&out, strings.NewReader("hunter2\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Equal(t, "Password: ", out.String())

	_, err = promptPassword(io.Discard, strings.NewReader("\n"))
	require.Error(t, err)
}

func TestConfirmReset(t *testing.T) {
	require.NoError(t, confirmReset(io.Discard, strings.NewReader("Y\n"), resetFlagsOptions{}))
	require.NoError(t, confirmReset(io.Discard, strings.NewReader(""), resetFlagsOptions{Yes: true}))

	var out bytes.Buffer
	err := confirmReset(&out, strings.NewReader("n\n"), resetFlagsOptions{All: true})
	require.EqualError(t, err, "aborted by user")
	assert.Contains(t, out.String(), "WARNING")
}

func TestLineActivity(t *testing.T) {
	a := newLineActivity()

	var (
		mu   sync.Mutex
		got  []string
		more []string
	)
	unsubscribe := a.Subscribe([]string{"keydown", "visibilitychange"}, func(kind string) {
		mu.Lock()
		got = append(got, kind)
		mu.Unlock()
	})
	a.Subscribe([]string{"scroll"}, func(kind string) {
		mu.Lock()
		more = append(more, kind)
		mu.Unlock()
	})

	require.NoError(t, a.run(strings.NewReader("\nvisibilitychange\nscroll\nmousemove\n")))
	assert.Equal(t, []string{"keydown", "visibilitychange"}, got)
	assert.Equal(t, []string{"scroll"}, more)

	unsubscribe()
	a.emit("keydown")
	assert.Len(t, got, 2)
}

func TestTerminalAdapters(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(&out, "")

	assert.Equal(t, "/", term.nav.CurrentPath())
	term.nav.Navigate("/login")
	assert.Equal(t, "/login", term.nav.CurrentPath())
	select {
	case p := <-term.nav.Navigations():
		assert.Equal(t, "/login", p)
	default:
		t.Fatal("navigation was not delivered")
	}

	term.notifier.Notify(ports.Notification{
		Title:       "[OneHub Suite] Session expired",
		Description: "You were logged out after a period of inactivity.",
		Variant:     ports.NotificationDestructive,
	})
	term.notifier.Notify(ports.Notification{Title: "Logging out..."})

	assert.Equal(t,
		"-> /login\n"+
			"[OneHub Suite] Session expired You were logged out after a period of inactivity.\n"+
			"Logging out...\n",
		out.String())
}

func TestTerminalNavigatorDoesNotBlock(t *testing.T) {
	term := newTerminal(io.Discard, "/dashboard")
	for range 20 {
		term.nav.Navigate("/login")
	}
	assert.Equal(t, "/login", term.nav.CurrentPath())
}

func TestPrintSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		snap     domainauth.Snapshot
		contains []string
	}{
		{
			name: "authenticated",
			snap: domainauth.Snapshot{
				State: domainauth.StateAuthenticated,
				User:  &domainauth.Identity{ID: "u1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: domainauth.RoleAdmin},
			},
			contains: []string{"State:   authenticated", "User:    Ada Lovelace <ada@example.com>", "ID:      u1", "Role:    admin"},
		},
		{
			name:     "unauthenticated",
			snap:     domainauth.Snapshot{State: domainauth.StateUnauthenticated, Err: apperrors.Unauthorized(401)},
			contains: []string{"State:   unauthenticated", "Reason:", "UNAUTHORIZED"},
		},
		{
			name:     "circuit open",
			snap:     domainauth.Snapshot{State: domainauth.StateCircuitOpen, Err: apperrors.CircuitOpen("logged_out")},
			contains: []string{"State:   circuit_open", "logged_out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, printSnapshot(&out, tt.snap))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
			if tt.snap.User == nil {
				assert.NotContains(t, out.String(), "User:")
			}
		})
	}
}

func TestPrintAuth401Events(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printAuth401Events(&out, nil))
	assert.Equal(t, "No 401 responses recorded.\n", out.String())

	out.Reset()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, printAuth401Events(&out, []time.Time{at, at.Add(time.Second)}))
	assert.Contains(t, out.String(), "401 responses (2):")
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}

func TestCollectAndPrintFlags(t *testing.T) {
	store := flagstore.New(flagstore.Options{})
	store.Set(flagstore.KeyRedirectAfterLogin, "/reports")
	store.Set(flagstore.KeyLastActiveTime, "1700000000000")
	store.Set(flagstore.KeySessionCookies, strings.Repeat("x", 200))

	all := collectFlags(store, false)
	require.Len(t, all, 3)
	assert.Equal(t, flagstore.KeyLastActiveTime, all[0].Key, "sorted by key")

	scoped := collectFlags(store, true)
	for _, e := range scoped {
		assert.True(t, e.SessionScoped, e.Key)
		assert.NotEqual(t, flagstore.KeyRedirectAfterLogin, e.Key)
	}

	var out bytes.Buffer
	require.NoError(t, printFlags(&out, all, false))
	assert.Contains(t, out.String(), "KEY")
	assert.Contains(t, out.String(), "persistent")
	assert.Contains(t, out.String(), "...")
	assert.NotContains(t, out.String(), strings.Repeat("x", 100))

	out.Reset()
	require.NoError(t, printFlags(&out, nil, false))
	assert.Equal(t, "No flags stored.\n", out.String())
}

func TestSessionTracker(t *testing.T) {
	var out bytes.Buffer
	tracker := newSessionTracker(newTerminal(&out, "/dashboard"))
	user := &domainauth.Identity{Email: "dev@example.com"}

	tracker.observe(domainauth.Snapshot{State: domainauth.StateChecking, IsLoading: true})
	tracker.observe(domainauth.Snapshot{State: domainauth.StateAuthenticated, User: user})
	tracker.observe(domainauth.Snapshot{State: domainauth.StateChecking, User: user})
	tracker.observe(domainauth.Snapshot{State: domainauth.StateAuthenticated, User: user})

	select {
	case <-tracker.Ended():
		t.Fatal("session has not ended")
	default:
	}
	assert.Equal(t, 1, strings.Count(out.String(), "authenticated as dev@example.com"))

	tracker.observe(domainauth.Snapshot{State: domainauth.StateCircuitOpen})
	select {
	case <-tracker.Ended():
	default:
		t.Fatal("expected session end")
	}
	assert.Contains(t, out.String(), "circuit_open")
}

func TestSessionTrackerIgnoresInitialFailure(t *testing.T) {
	tracker := newSessionTracker(newTerminal(io.Discard, "/dashboard"))
	tracker.observe(domainauth.Snapshot{State: domainauth.StateUnauthenticated})

	select {
	case <-tracker.Ended():
		t.Fatal("a session that never started cannot end")
	default:
	}
}

type cliHarness struct {
	cfg config.AppConfig
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	cfg := config.AppConfig{
		Session: config.DefaultSessionConfig(),
		Client:  config.ClientConfig{PersistCookies: true},
		Flags: config.FlagsConfig{
			Backend:  config.FlagBackendFile,
			FilePath: filepath.Join(t.TempDir(), "flags.json"),
		},
		Auth: config.AuthConfig{
			SessionStore:   config.SessionStoreMemory,
			SessionTTL:     time.Hour,
			AdminGroup:     "admins",
			MarketingGroup: "marketing",
			DevUser: config.DevUserConfig{
				ID:        "dev-user",
				Email:     "dev@example.com",
				FirstName: "Dev",
				LastName:  "User",
				Groups:    []string{"admins"},
				Password:  "devpassword",
			},
		},
	}
	cfg.Sanitize()

	svc, err := bootstrap.BuildAuthService(bootstrap.AuthConfig{Auth: cfg.Auth, Logger: discardLogger()})
	require.NoError(t, err)
	srv := httptest.NewServer(bootstrap.BuildHTTPHandler(&bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Auth:    svc,
		Metrics: bootstrap.Metrics{Sink: metrics.Nop{}},
		Logger:  discardLogger(),
	}))
	t.Cleanup(srv.Close)

	cfg.Client.BaseURL = srv.URL
	return &cliHarness{cfg: cfg}
}

func (h *cliHarness) run(t *testing.T, name string, args ...string) (string, error) {
	t.Helper()
	cmd, ok := commands()[name]
	require.True(t, ok, "unknown command %s", name)

	var out bytes.Buffer
	err := cmd.run(&commandContext{
		Ctx:    t.Context(),
		Logger: discardLogger(),
		Config: h.cfg,
		Stdout: &out,
		Stdin:  strings.NewReader(""),
	}, args)
	return out.String(), err
}

func TestCLI_SessionLifecycle(t *testing.T) {
	h := newCLIHarness(t)

	// A protected page without a session bounces to the login page and is remembered.
	out, err := h.run(t, "whoami", "--path", "/reports", "--events")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
	assert.Contains(t, out, "-> /login")
	assert.Contains(t, out, "State:   unauthenticated")
	assert.Contains(t, out, "401 responses (1):")

	out, err = h.run(t, "login", "--email", "dev@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid email or password")

	out, err = h.run(t, "login", "--email", "dev@example.com", "--password", "devpassword")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Dev User <dev@example.com>")
	assert.Contains(t, out, "Role:    admin")
	assert.Contains(t, out, "Continue at /reports")

	// The cookie jar persisted by login is picked up by a separate invocation.
	out, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "State:   authenticated")
	assert.Contains(t, out, "User:    Dev User <dev@example.com>")

	out, err = h.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logging out...")
	assert.Contains(t, out, "-> /\n")
	assert.Contains(t, out, "Signed out")

	// The logout marker outlives the process and blocks checks until the next login.
	out, err = h.run(t, "whoami")
	require.Error(t, err)
	assert.True(t, apperrors.IsCircuitOpen(err), "got %v", err)
	assert.Contains(t, out, "State:   circuit_open")

	out, err = h.run(t, "flags")
	require.NoError(t, err)
	assert.Contains(t, out, flagstore.KeyJustLoggedOut)

	out, err = h.run(t, "reset-flags", "--all", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would remove")

	out, err = h.run(t, "reset-flags", "--all", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")

	out, err = h.run(t, "flags")
	require.NoError(t, err)
	assert.Equal(t, "No flags stored.\n", out)

	// With the marker gone the server is asked again and rejects the cookieless request.
	_, err = h.run(t, "whoami", "--path", "/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errNotAuthenticated))
	assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
}
