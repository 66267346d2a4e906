package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/nreinfusion/onehub-session/internal/flagstore"
)

// maxValueWidth truncates long values (such as the cookie jar) in listings.
const maxValueWidth = 60

type listFlagsOptions struct {
	SessionOnly bool
	Full        bool
}

type resetFlagsOptions struct {
	All    bool
	DryRun bool
	Yes    bool
}

type flagEntry struct {
	Key           string
	Value         string
	SessionScoped bool
}

func parseListFlagsFlags(args []string) (listFlagsOptions, error) {
	fs := flag.NewFlagSet("flags", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listFlagsOptions
	fs.BoolVar(&opts.SessionOnly, "session-only", false, "Only list keys that logout removes")
	fs.BoolVar(&opts.Full, "full", false, "Print values without truncation")

	if err := fs.Parse(args); err != nil {
		return listFlagsOptions{}, err
	}
	return opts, nil
}

func parseResetFlagsFlags(args []string) (resetFlagsOptions, error) {
	fs := flag.NewFlagSet("reset-flags", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts resetFlagsOptions
	fs.BoolVar(&opts.All, "all", false, "Remove every flag, not only session-scoped ones")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print the keys that would be removed")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return resetFlagsOptions{}, err
	}
	if fs.NArg() > 0 {
		return resetFlagsOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func collectFlags(store *flagstore.Store, sessionOnly bool) []flagEntry {
	keys := store.Keys()
	sort.Strings(keys)

	entries := make([]flagEntry, 0, len(keys))
	for _, key := range keys {
		scoped := flagstore.IsSessionScoped(key)
		if sessionOnly && !scoped {
			continue
		}
		value, ok := store.Get(key)
		if !ok {
			continue
		}
		entries = append(entries, flagEntry{Key: key, Value: value, SessionScoped: scoped})
	}
	return entries
}

func runListFlags(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlagsFlags(args)
	if err != nil {
		return err
	}

	env, err := openFlags(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	return printFlags(cmdCtx.Stdout, collectFlags(env.Flags, opts.SessionOnly), opts.Full)
}

func printFlags(w io.Writer, entries []flagEntry, full bool) error {
	if len(entries) == 0 {
		return writeln(w, "No flags stored.")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "KEY\tSCOPE\tVALUE\n"); err != nil {
		return fmt.Errorf("write flags header: %w", err)
	}
	for _, e := range entries {
		scope := "persistent"
		if e.SessionScoped {
			scope = "session"
		}
		value := e.Value
		if !full {
			value = truncate(value, maxValueWidth)
		}
		if err := writef(tw, "%s\t%s\t%s\n", e.Key, scope, value); err != nil {
			return fmt.Errorf("write flag row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush flags table: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func runResetFlags(cmdCtx *commandContext, args []string) error {
	opts, err := parseResetFlagsFlags(args)
	if err != nil {
		return err
	}

	env, err := openFlags(cmdCtx)
	if err != nil {
		return err
	}
	defer env.Close()

	targets := collectFlags(env.Flags, !opts.All)
	if len(targets) == 0 {
		return writeln(cmdCtx.Stdout, "Nothing to remove.")
	}

	if err := printResetPlan(cmdCtx.Stdout, targets, opts); err != nil {
		return err
	}
	if opts.DryRun {
		return nil
	}
	if err := confirmReset(cmdCtx.Stdout, cmdCtx.Stdin, opts); err != nil {
		return err
	}

	removed := len(targets)
	if opts.All {
		env.Flags.Clear()
	} else {
		removed = len(env.Flags.RemoveMatching(flagstore.IsSessionScoped))
	}
	cmdCtx.Logger.Info("flags reset", "all", opts.All, "removed", removed)

	_, err = color.New(color.FgGreen).Fprintf(cmdCtx.Stdout, "Removed %d flag(s).\n", removed)
	if err != nil {
		return fmt.Errorf("print reset result: %w", err)
	}
	return nil
}

func printResetPlan(w io.Writer, targets []flagEntry, opts resetFlagsOptions) error {
	verb := "Will remove"
	if opts.DryRun {
		verb = "Would remove"
	}
	if err := writef(w, "%s %d flag(s):\n", verb, len(targets)); err != nil {
		return fmt.Errorf("print reset plan: %w", err)
	}
	for _, e := range targets {
		if err := writef(w, "  %s\n", e.Key); err != nil {
			return fmt.Errorf("print reset target: %w", err)
		}
	}
	return nil
}

func confirmReset(w io.Writer, r io.Reader, opts resetFlagsOptions) error {
	if opts.Yes {
		return nil
	}
	if opts.All {
		if _, err := color.New(color.FgYellow).Fprintln(w, "WARNING: this also removes persistent flags such as redirectAfterLogin."); err != nil {
			return fmt.Errorf("print confirmation warning: %w", err)
		}
	}
	if err := writef(w, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
