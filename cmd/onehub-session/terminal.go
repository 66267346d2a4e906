package main

import (
	"bufio"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nreinfusion/onehub-session/internal/ports"
)

// defaultActivityKind is reported for a blank line on stdin.
const defaultActivityKind = "keydown"

// terminal bundles the adapters that stand in for a browser tab.
type terminal struct {
	out io.Writer
	mu  *sync.Mutex

	nav      *terminalNavigator
	notifier *terminalNotifier
	activity *lineActivity
}

func newTerminal(out io.Writer, path string) *terminal {
	mu := &sync.Mutex{}
	return &terminal{
		out:      out,
		mu:       mu,
		nav:      newTerminalNavigator(out, mu, path),
		notifier: &terminalNotifier{out: out, mu: mu},
		activity: newLineActivity(),
	}
}

// printf serialises output with the navigator and notifier.
func (t *terminal) printf(clr *color.Color, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = clr.Fprintf(t.out, format, args...)
}

// terminalNavigator tracks the location a browser would be showing and prints
// every navigation.
type terminalNavigator struct {
	out io.Writer
	mu  *sync.Mutex

	pathMu    sync.Mutex
	path      string
	navigated chan string
}

var _ ports.Navigator = (*terminalNavigator)(nil)

func newTerminalNavigator(out io.Writer, mu *sync.Mutex, path string) *terminalNavigator {
	if path == "" {
		path = "/"
	}
	return &terminalNavigator{out: out, mu: mu, path: path, navigated: make(chan string, 8)}
}

func (n *terminalNavigator) CurrentPath() string {
	n.pathMu.Lock()
	defer n.pathMu.Unlock()
	return n.path
}

func (n *terminalNavigator) Navigate(path string) {
	n.pathMu.Lock()
	n.path = path
	n.pathMu.Unlock()

	n.mu.Lock()
	_, _ = color.New(color.FgCyan).Fprintf(n.out, "-> %s\n", path)
	n.mu.Unlock()

	select {
	case n.navigated <- path:
	default:
	}
}

// Navigations delivers each navigated path. Paths are dropped when nobody reads.
func (n *terminalNavigator) Navigations() <-chan string { return n.navigated }

// terminalNotifier prints notifications, destructive ones in red.
type terminalNotifier struct {
	out io.Writer
	mu  *sync.Mutex
}

var _ ports.Notifier = (*terminalNotifier)(nil)

func (n *terminalNotifier) Notify(note ports.Notification) {
	title := color.New(color.FgWhite, color.Bold)
	if note.Variant == ports.NotificationDestructive {
		title = color.New(color.FgRed, color.Bold)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = title.Fprint(n.out, note.Title)
	if note.Description != "" {
		_, _ = color.New(color.FgHiBlack).Fprintf(n.out, " %s", note.Description)
	}
	_, _ = io.WriteString(n.out, "\n")
}

// lineActivity turns lines read from a terminal into activity signals. A blank
// line is a key press; any other line names the signal kind, e.g. "scroll" or
// "visibilitychange".
type lineActivity struct {
	mu   sync.Mutex
	subs map[int]activitySub
	next int
}

type activitySub struct {
	kinds []string
	fn    func(kind string)
}

var _ ports.ActivitySource = (*lineActivity)(nil)

func newLineActivity() *lineActivity {
	return &lineActivity{subs: make(map[int]activitySub)}
}

func (a *lineActivity) Subscribe(kinds []string, fn func(kind string)) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.subs[id] = activitySub{kinds: slices.Clone(kinds), fn: fn}
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *lineActivity) emit(kind string) {
	a.mu.Lock()
	var fns []func(string)
	for _, sub := range a.subs {
		if slices.Contains(sub.kinds, kind) {
			fns = append(fns, sub.fn)
		}
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// run emits one signal per line until r is exhausted.
func (a *lineActivity) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		kind := strings.TrimSpace(scanner.Text())
		if kind == "" {
			kind = defaultActivityKind
		}
		a.emit(kind)
	}
	return scanner.Err()
}
