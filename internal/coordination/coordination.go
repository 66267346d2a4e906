// Package coordination suppresses redundant identity checks issued by several
// callers in quick succession, and honours the shared auth-loop marker.
package coordination

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
)

// DefaultLoopTTL is how long an auth-loop marker blocks identity checks.
const DefaultLoopTTL = 30 * time.Second

// Options configures a State. Flags holds the shared authLoopDetected marker;
// nil disables loop detection. A zero Debounce disables debouncing. LoopTTL
// bounds how long a marked auth loop blocks checks and defaults to DefaultLoopTTL.
type Options struct {
	Flags    *flagstore.Store
	Debounce time.Duration
	LoopTTL  time.Duration
	Clock    clockwork.Clock
}

// State tracks the most recent identity-check attempt of one controller.
type State struct {
	flags    *flagstore.Store
	debounce time.Duration
	loopTTL  time.Duration
	clock    clockwork.Clock

	mu          sync.Mutex
	lastRequest time.Time
}

// New constructs a State.
func New(opts Options) *State {
	s := &State{
		flags:    opts.Flags,
		debounce: opts.Debounce,
		loopTTL:  opts.LoopTTL,
		clock:    opts.Clock,
	}
	if s.debounce < 0 {
		s.debounce = 0
	}
	if s.loopTTL <= 0 {
		s.loopTTL = DefaultLoopTTL
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// RecordAuthRequest timestamps an identity-check attempt.
func (s *State) RecordAuthRequest() {
	s.mu.Lock()
	s.lastRequest = s.clock.Now()
	s.mu.Unlock()
}

// ShouldPreventAuthRequest reports whether an attempt now would be redundant:
// either one was recorded inside the debounce window or an auth loop is flagged.
func (s *State) ShouldPreventAuthRequest() bool {
	s.mu.Lock()
	last := s.lastRequest
	s.mu.Unlock()

	if s.debounce > 0 && !last.IsZero() && s.clock.Since(last) < s.debounce {
		return true
	}
	return s.LoopDetected()
}

// LoopDetected reports whether the shared auth-loop marker is set and has not
// outlived the loop TTL. An expired marker is removed. The expiry is checked
// against the stored timestamp because the process that set the marker may have
// exited before its removal timer fired.
func (s *State) LoopDetected() bool {
	if s.flags == nil {
		return false
	}
	v, ok := s.flags.Get(flagstore.KeyAuthLoopDetected)
	if !ok || v != "true" {
		return false
	}
	if at, ok := s.flags.GetTime(flagstore.KeyAuthLoopDetectedAt); ok && s.clock.Since(at) >= s.loopTTL {
		s.flags.Remove(flagstore.KeyAuthLoopDetected, flagstore.KeyAuthLoopDetectedAt)
		return false
	}
	return true
}

// MarkAuthLoop sets the shared auth-loop marker for the loop TTL, blocking
// checks in every process that shares the flag backend.
func (s *State) MarkAuthLoop() {
	if s.flags == nil {
		return
	}
	s.flags.SetTime(flagstore.KeyAuthLoopDetectedAt, s.clock.Now())
	s.flags.SetTemporary(flagstore.KeyAuthLoopDetected, "true", s.loopTTL)
}

// ResetAuthLoop clears the marker and records when it was cleared.
func (s *State) ResetAuthLoop() {
	if s.flags == nil {
		return
	}
	s.flags.Remove(flagstore.KeyAuthLoopDetected, flagstore.KeyAuthLoopDetectedAt)
	s.flags.SetTime(flagstore.KeyLastAuthLoopReset, s.clock.Now())
}
