package coordination

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/nreinfusion/onehub-session/internal/flagstore"
)

func TestState_DebouncesRecentRequest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(Options{Debounce: time.Second, Clock: clock})

	assert.False(t, s.ShouldPreventAuthRequest())

	s.RecordAuthRequest()
	assert.True(t, s.ShouldPreventAuthRequest())

	clock.Advance(999 * time.Millisecond)
	assert.True(t, s.ShouldPreventAuthRequest())

	clock.Advance(time.Millisecond)
	assert.False(t, s.ShouldPreventAuthRequest())
}

func TestState_AuthLoopMarkerIsShared(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backend := flagstore.NewMemoryBackend()
	tabA := New(Options{Flags: flagstore.New(flagstore.Options{Backend: backend}), Clock: clock})
	tabB := New(Options{Flags: flagstore.New(flagstore.Options{Backend: backend}), Clock: clock})

	tabA.MarkAuthLoop()

	assert.True(t, tabB.LoopDetected())
	assert.True(t, tabB.ShouldPreventAuthRequest())

	tabB.ResetAuthLoop()

	assert.False(t, tabA.ShouldPreventAuthRequest())
	flags := flagstore.New(flagstore.Options{Backend: backend})
	at, ok := flags.GetTime(flagstore.KeyLastAuthLoopReset)
	assert.True(t, ok)
	assert.True(t, clock.Now().Truncate(time.Millisecond).Equal(at))
}

func TestState_NilFlagsDisablesLoopDetection(t *testing.T) {
	s := New(Options{})
	s.MarkAuthLoop()
	s.ResetAuthLoop()
	assert.False(t, s.LoopDetected())
}

func TestState_ZeroDebounceNeverPrevents(t *testing.T) {
	s := New(Options{Clock: clockwork.NewFakeClock()})

	s.RecordAuthRequest()
	assert.False(t, s.ShouldPreventAuthRequest())
}

func TestState_AuthLoopMarkerExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backend := flagstore.NewMemoryBackend()
	flags := flagstore.New(flagstore.Options{Backend: backend, Clock: clock})
	s := New(Options{Flags: flags, LoopTTL: 10 * time.Second, Clock: clock})

	s.MarkAuthLoop()
	assert.True(t, s.LoopDetected())

	clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return !s.LoopDetected() }, time.Second, time.Millisecond)
}

func TestState_AuthLoopMarkerLeftByExitedProcess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backend := flagstore.NewMemoryBackend()

	// The marking process exits before its removal timer fires.
	exited := flagstore.New(flagstore.Options{Backend: backend, Clock: clock})
	New(Options{Flags: exited, LoopTTL: 10 * time.Second, Clock: clock}).MarkAuthLoop()
	exited.Close()

	flags := flagstore.New(flagstore.Options{Backend: backend, Clock: clock})
	s := New(Options{Flags: flags, LoopTTL: 10 * time.Second, Clock: clock})
	assert.True(t, s.LoopDetected())

	clock.Advance(10 * time.Second)
	assert.False(t, s.LoopDetected())
	assert.False(t, flags.Has(flagstore.KeyAuthLoopDetected))
	assert.False(t, flags.Has(flagstore.KeyAuthLoopDetectedAt))
}
