// Package circuitbreaker stops a persistently failing identity check from
// hammering the server.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultThreshold = 3
	DefaultWindow    = 60 * time.Second
	DefaultCooldown  = 30 * time.Second
)

// Options configures a Breaker. Zero values take the defaults.
type Options struct {
	// Threshold is the number of failures that opens the circuit.
	Threshold int
	// Window bounds a failure streak: a failure arriving later than Window after
	// the first one in the streak starts a new count.
	Window time.Duration
	// Cooldown is how long an open circuit blocks before reporting closed again.
	Cooldown time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// State is a point-in-time copy of the breaker counters.
type State struct {
	ConsecutiveFailures int
	OpenedAt            time.Time
	Open                bool
}

// Breaker counts transport failures. It is safe for concurrent use.
type Breaker struct {
	threshold int
	window    time.Duration
	cooldown  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger

	mu          sync.Mutex
	failures    int
	streakStart time.Time
	openedAt    time.Time
}

// New constructs a Breaker.
func New(opts Options) *Breaker {
	b := &Breaker{
		threshold: opts.Threshold,
		window:    opts.Window,
		cooldown:  opts.Cooldown,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if b.threshold <= 0 {
		b.threshold = DefaultThreshold
	}
	if b.window <= 0 {
		b.window = DefaultWindow
	}
	if b.cooldown <= 0 {
		b.cooldown = DefaultCooldown
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// IsOpen reports whether calls should be blocked. The circuit closes on its
// own once the cooldown has elapsed since it opened.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpenLocked(b.clock.Now())
}

func (b *Breaker) isOpenLocked(now time.Time) bool {
	if b.failures < b.threshold || b.openedAt.IsZero() {
		return false
	}
	return now.Sub(b.openedAt) < b.cooldown
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.streakStart = time.Time{}
	b.openedAt = time.Time{}
}

// RecordFailure counts a transport failure. Reaching the threshold opens the
// circuit; a failure after the cooldown of a tripped circuit re-opens it at once.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	tripped := !b.openedAt.IsZero()
	if !tripped && (b.failures == 0 || now.Sub(b.streakStart) > b.window) {
		b.failures = 0
		b.streakStart = now
	}
	b.failures++

	switch {
	case tripped && !b.isOpenLocked(now):
		b.openedAt = now
		b.logger.Warn("circuit re-opened after failed probe", "failures", b.failures)
	case !tripped && b.failures >= b.threshold:
		b.openedAt = now
		b.logger.Warn("circuit opened", "failures", b.failures, "cooldown", b.cooldown)
	}
}

// State returns a copy of the current counters.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
		Open:                b.isOpenLocked(b.clock.Now()),
	}
}
