package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/bootstrap"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
)

const defaultCommandTimeout = 30 * time.Second

var (
	errNotAuthenticated = errors.New("not authenticated")
	errEmailRequired    = errors.New("--email is required")
)

type loginOptions struct {
	Email    string
	Password string
}

type whoamiOptions struct {
	Path    string
	Refresh bool
	Events  bool
}

type logoutOptions struct {
	Path string
	Wait time.Duration
}

type watchOptions struct {
	Path        string
	Interval    time.Duration
	Stdin       bool
	KeepRunning bool
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Account password (prompted when omitted)")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return loginOptions{}, errEmailRequired
	}
	return opts, nil
}

func parseWhoamiFlags(args []string, cfg *config.SessionConfig) (whoamiOptions, error) {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts whoamiOptions
	fs.StringVar(&opts.Path, "path", cfg.DashboardPath, "Page the check runs on; public pages never redirect to login")
	fs.BoolVar(&opts.Refresh, "refresh", false, "Force a refetch instead of honouring the debounce and retry policy")
	fs.BoolVar(&opts.Events, "events", false, "Also print the recorded 401 responses")

	if err := fs.Parse(args); err != nil {
		return whoamiOptions{}, err
	}
	return opts, nil
}

func parseLogoutFlags(args []string, cfg *config.SessionConfig) (logoutOptions, error) {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts logoutOptions
	fs.StringVar(&opts.Path, "path", cfg.DashboardPath, "Page the logout starts from")
	fs.DurationVar(&opts.Wait, "wait", cfg.LogoutNavigateDelay+2*time.Second, "How long to wait for the post-logout navigation")

	if err := fs.Parse(args); err != nil {
		return logoutOptions{}, err
	}
	if opts.Wait < 0 {
		return logoutOptions{}, errors.New("--wait must not be negative")
	}
	return opts, nil
}

func parseWatchFlags(args []string, cfg *config.SessionConfig) (watchOptions, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := watchOptions{Interval: cfg.StaleTime}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	fs.StringVar(&opts.Path, "path", cfg.DashboardPath, "Page the watched session is on")
	fs.DurationVar(&opts.Interval, "interval", opts.Interval, "How often the identity check re-runs")
	fs.BoolVar(&opts.Stdin, "stdin", true, "Treat lines on stdin as activity (blank line = keydown)")
	fs.BoolVar(&opts.KeepRunning, "keep-running", false, "Keep watching after the session ends")

	if err := fs.Parse(args); err != nil {
		return watchOptions{}, err
	}
	if opts.Interval < time.Second {
		return watchOptions{}, errors.New("--interval must be at least 1s")
	}
	return opts, nil
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	if opts.Password == "" {
		if opts.Password, err = promptPassword(cmdCtx.Stdout, cmdCtx.Stdin); err != nil {
			return err
		}
	}

	env, err := openFlags(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	client, err := bootstrap.BuildSuiteClient(bootstrap.SessionConfig{
		Config: &cmdCtx.Config,
		Flags:  env.Flags,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	resp, err := client.Login(ctx, opts.Email, opts.Password)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			_, _ = color.New(color.FgRed, color.Bold).Fprintln(cmdCtx.Stdout, "Invalid email or password")
		}
		return fmt.Errorf("login: %w", err)
	}

	if err := printLogin(cmdCtx.Stdout, resp.User, resp.ExpiresAt); err != nil {
		return err
	}

	// The page the user was bounced from is restored once, then forgotten.
	if dest, ok := env.Flags.Get(flagstore.KeyRedirectAfterLogin); ok && dest != "" {
		env.Flags.Remove(flagstore.KeyRedirectAfterLogin)
		if err := writef(cmdCtx.Stdout, "Continue at %s\n", dest); err != nil {
			return fmt.Errorf("print redirect target: %w", err)
		}
	}
	return nil
}

func promptPassword(w io.Writer, r io.Reader) (string, error) {
	if err := writef(w, "Password: "); err != nil {
		return "", fmt.Errorf("print password prompt: %w", err)
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func printLogin(w io.Writer, user domainauth.Identity, expiresAt time.Time) error {
	if _, err := color.New(color.FgGreen, color.Bold).Fprintf(w, "Signed in as %s <%s>\n", user.DisplayName(), user.Email); err != nil {
		return fmt.Errorf("print login result: %w", err)
	}
	if err := writef(w, "Role:    %s\n", user.Role); err != nil {
		return fmt.Errorf("print login role: %w", err)
	}
	if !expiresAt.IsZero() {
		if err := writef(w, "Expires: %s\n", expiresAt.Local().Format(time.RFC1123)); err != nil {
			return fmt.Errorf("print login expiry: %w", err)
		}
	}
	return nil
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	opts, err := parseWhoamiFlags(args, &cmdCtx.Config.Session)
	if err != nil {
		return err
	}

	term := newTerminal(cmdCtx.Stdout, opts.Path)
	env, err := openSession(cmdCtx, term)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	controller := env.Session.Controller
	var (
		snap     domainauth.Snapshot
		checkErr error
	)
	if opts.Refresh {
		checkErr = controller.RefreshUser(ctx)
		snap = controller.Snapshot()
	} else {
		snap, checkErr = controller.Check(ctx)
	}

	if err := printBanner(cmdCtx.Stdout, cmdCtx.Config.Branding); err != nil {
		return err
	}
	if err := printSnapshot(cmdCtx.Stdout, snap); err != nil {
		return err
	}
	if opts.Events {
		if err := printAuth401Events(cmdCtx.Stdout, env.Session.Client.Auth401Events()); err != nil {
			return err
		}
	}

	if snap.IsAuthenticated() {
		return nil
	}
	if checkErr == nil {
		checkErr = errNotAuthenticated
	}
	return fmt.Errorf("identity check: %w", checkErr)
}

func printBanner(w io.Writer, branding config.BrandingConfig) error {
	if _, err := color.New(color.FgCyan, color.Bold).Fprintf(w, "%s", branding.AppName); err != nil {
		return fmt.Errorf("print banner: %w", err)
	}
	if branding.Version != "" {
		if _, err := color.New(color.FgHiBlack).Fprintf(w, " v%s", branding.Version); err != nil {
			return fmt.Errorf("print banner version: %w", err)
		}
	}
	return writeln(w)
}

func stateColor(state domainauth.State) *color.Color {
	switch state {
	case domainauth.StateAuthenticated:
		return color.New(color.FgGreen, color.Bold)
	case domainauth.StateUnauthenticated:
		return color.New(color.FgYellow, color.Bold)
	case domainauth.StateCircuitOpen:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgHiBlack)
	}
}

func printSnapshot(w io.Writer, snap domainauth.Snapshot) error {
	if err := writef(w, "State:   "); err != nil {
		return fmt.Errorf("print state label: %w", err)
	}
	if _, err := stateColor(snap.State).Fprintln(w, snap.State); err != nil {
		return fmt.Errorf("print state: %w", err)
	}

	if user := snap.User; user != nil {
		lines := []string{
			fmt.Sprintf("User:    %s <%s>", user.DisplayName(), user.Email),
			fmt.Sprintf("ID:      %s", user.ID),
			fmt.Sprintf("Role:    %s", user.Role),
		}
		for _, line := range lines {
			if err := writeln(w, line); err != nil {
				return fmt.Errorf("print identity: %w", err)
			}
		}
	}

	if snap.Err != nil {
		kind := apperrors.KindOf(snap.Err)
		if _, err := color.New(color.FgHiBlack).Fprintf(w, "Reason:  %s (%s)\n", snap.Err, kind); err != nil {
			return fmt.Errorf("print reason: %w", err)
		}
	}
	return nil
}

func printAuth401Events(w io.Writer, events []time.Time) error {
	if len(events) == 0 {
		return writeln(w, "No 401 responses recorded.")
	}
	if err := writef(w, "401 responses (%d):\n", len(events)); err != nil {
		return fmt.Errorf("print 401 header: %w", err)
	}
	for _, at := range events {
		if err := writef(w, "  %s\n", at.Local().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("print 401 event: %w", err)
		}
	}
	return nil
}

func runLogout(cmdCtx *commandContext, args []string) error {
	opts, err := parseLogoutFlags(args, &cmdCtx.Config.Session)
	if err != nil {
		return err
	}

	term := newTerminal(cmdCtx.Stdout, opts.Path)
	env, err := openSession(cmdCtx, term)
	if err != nil {
		return err
	}
	defer env.Close()

	env.Session.Controller.Logout(cmdCtx.Ctx)

	select {
	case <-term.nav.Navigations():
	case <-time.After(opts.Wait):
		cmdCtx.Logger.Warn("post-logout navigation did not happen", "wait", opts.Wait)
	}

	term.printf(color.New(color.FgGreen, color.Bold), "Signed out\n")
	return nil
}

// sessionTracker prints state transitions and reports when a session that was
// authenticated is lost.
type sessionTracker struct {
	term *terminal

	mu    sync.Mutex
	last  domainauth.State
	seen  bool
	ended chan struct{}
	once  sync.Once
}

func newSessionTracker(term *terminal) *sessionTracker {
	return &sessionTracker{term: term, ended: make(chan struct{})}
}

func (s *sessionTracker) observe(snap domainauth.Snapshot) {
	if snap.State == domainauth.StateChecking {
		return
	}

	s.mu.Lock()
	prev := s.last
	s.last = snap.State
	hadSession := s.seen
	if snap.State == domainauth.StateAuthenticated {
		s.seen = true
	}
	s.mu.Unlock()

	if snap.State == prev {
		return
	}

	stamp := time.Now().Format(time.TimeOnly)
	if snap.User != nil {
		s.term.printf(stateColor(snap.State), "[%s] %s as %s\n", stamp, snap.State, snap.User.Email)
	} else {
		s.term.printf(stateColor(snap.State), "[%s] %s\n", stamp, snap.State)
	}

	if hadSession && snap.State != domainauth.StateAuthenticated {
		s.once.Do(func() { close(s.ended) })
	}
}

// Ended is closed once a previously authenticated session is lost.
func (s *sessionTracker) Ended() <-chan struct{} { return s.ended }

func runWatch(cmdCtx *commandContext, args []string) error {
	opts, err := parseWatchFlags(args, &cmdCtx.Config.Session)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	term := newTerminal(cmdCtx.Stdout, opts.Path)
	env, err := openSession(cmdCtx, term)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := printBanner(cmdCtx.Stdout, cmdCtx.Config.Branding); err != nil {
		return err
	}

	controller := env.Session.Controller
	tracker := newSessionTracker(term)
	unsubscribe := controller.Subscribe(tracker.observe)
	defer unsubscribe()

	if opts.Stdin && cmdCtx.Stdin != nil {
		go func() {
			if readErr := term.activity.run(cmdCtx.Stdin); readErr != nil {
				cmdCtx.Logger.Warn("activity input closed", "error", readErr)
			}
		}()
	}

	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
		if _, checkErr := controller.Check(checkCtx); checkErr != nil {
			cmdCtx.Logger.Debug("identity check failed", "error", checkErr)
		}
	}
	check()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	ended := tracker.Ended()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			if !opts.KeepRunning {
				term.printf(color.New(color.FgHiBlack), "Session ended\n")
				return nil
			}
			ended = nil
		case <-ticker.C:
			check()
		}
	}
}
