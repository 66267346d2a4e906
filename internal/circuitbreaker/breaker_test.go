package circuitbreaker

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func newTestBreaker() (*Breaker, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return New(Options{Clock: clock}), clock
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
	assert.Equal(t, 3, b.State().ConsecutiveFailures)
}

func TestBreaker_SuccessResets(t *testing.T) {
	b, _ := newTestBreaker()
	for range 3 {
		b.RecordFailure()
	}
	assert.True(t, b.IsOpen())

	b.RecordSuccess()

	assert.False(t, b.IsOpen())
	st := b.State()
	assert.Zero(t, st.ConsecutiveFailures)
	assert.True(t, st.OpenedAt.IsZero())
}

func TestBreaker_ClosesAfterCooldownWithoutSuccess(t *testing.T) {
	b, clock := newTestBreaker()
	for range 3 {
		b.RecordFailure()
	}

	clock.Advance(29 * time.Second)
	assert.True(t, b.IsOpen())

	clock.Advance(time.Second)
	assert.False(t, b.IsOpen())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker()
	for range 3 {
		b.RecordFailure()
	}
	clock.Advance(31 * time.Second)
	assert.False(t, b.IsOpen())

	b.RecordFailure()

	assert.True(t, b.IsOpen())
	assert.Equal(t, clock.Now(), b.State().OpenedAt)
}

func TestBreaker_FailuresOutsideWindowRestartCount(t *testing.T) {
	b, clock := newTestBreaker()

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(61 * time.Second)
	b.RecordFailure()

	assert.False(t, b.IsOpen())
	assert.Equal(t, 1, b.State().ConsecutiveFailures)
}

func TestBreaker_CustomOptions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(Options{Threshold: 1, Cooldown: time.Second, Clock: clock})

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	clock.Advance(time.Second)
	assert.False(t, b.IsOpen())
}
