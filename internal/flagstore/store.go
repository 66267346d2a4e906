// Package flagstore wraps a shared key/value backend with the best-effort
// semantics browsers give localStorage: every failure is logged and swallowed.
package flagstore

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

const defaultOpTimeout = 2 * time.Second

// Options groups dependencies for Store.
type Options struct {
	Backend ports.FlagBackend
	Logger  *slog.Logger
	Clock   clockwork.Clock
	// OpTimeout bounds each backend call (default 2s).
	OpTimeout time.Duration
}

// Store is the flag store used by session components. It never returns errors:
// a failed write leaves the previous value in place, a failed read reports absence.
type Store struct {
	backend ports.FlagBackend
	logger  *slog.Logger
	clock   clockwork.Clock
	timeout time.Duration

	mu     sync.Mutex
	timers map[string]clockwork.Timer
}

// New constructs a Store. A nil backend falls back to a private MemoryBackend.
func New(opts Options) *Store {
	s := &Store{
		backend: opts.Backend,
		logger:  opts.Logger,
		clock:   opts.Clock,
		timeout: opts.OpTimeout,
		timers:  make(map[string]clockwork.Timer),
	}
	if s.backend == nil {
		s.backend = NewMemoryBackend()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.timeout <= 0 {
		s.timeout = defaultOpTimeout
	}
	return s
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	ctx, cancel := s.opContext()
	defer cancel()

	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("flag read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set stores value under key.
func (s *Store) Set(key, value string) {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.backend.Set(ctx, key, value); err != nil {
		s.logger.Warn("flag write failed", "key", key, "error", err)
	}
}

// Remove deletes each key. Pending self-expiry timers for the keys are cancelled.
func (s *Store) Remove(keys ...string) {
	ctx, cancel := s.opContext()
	defer cancel()

	for _, key := range keys {
		s.stopTimer(key)
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("flag delete failed", "key", key, "error", err)
		}
	}
}

// Clear removes every key from the backend.
func (s *Store) Clear() {
	ctx, cancel := s.opContext()
	defer cancel()

	s.stopAllTimers()
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Warn("flag clear failed", "error", err)
	}
}

// Keys lists the stored keys; on failure it returns nil.
func (s *Store) Keys() []string {
	ctx, cancel := s.opContext()
	defer cancel()

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.logger.Warn("flag listing failed", "error", err)
		return nil
	}
	return keys
}

// RemoveMatching deletes every key for which match returns true and returns them.
func (s *Store) RemoveMatching(match func(key string) bool) []string {
	var removed []string
	for _, key := range s.Keys() {
		if match(key) {
			removed = append(removed, key)
		}
	}
	s.Remove(removed...)
	return removed
}

// GetTime reads a timestamp stored as unix milliseconds.
func (s *Store) GetTime(key string) (time.Time, bool) {
	raw, ok := s.Get(key)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// SetTime stores t as unix milliseconds.
func (s *Store) SetTime(key string, t time.Time) {
	s.Set(key, strconv.FormatInt(t.UnixMilli(), 10))
}

// SetTemporary stores value and removes the key after ttl. A later SetTemporary
// or Remove for the same key replaces the pending removal.
func (s *Store) SetTemporary(key, value string, ttl time.Duration) {
	s.Set(key, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var timer clockwork.Timer
	timer = s.clock.AfterFunc(ttl, func() {
		s.mu.Lock()
		if s.timers[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()

		ctx, cancel := s.opContext()
		defer cancel()
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Warn("flag expiry failed", "key", key, "error", err)
		}
	})
	s.timers[key] = timer
}

// Watch subscribes to changes made through the backend, including those from
// other processes. Backends without change notification yield a no-op.
func (s *Store) Watch(fn func(key string)) func() {
	w, ok := s.backend.(ports.FlagWatcher)
	if !ok {
		return func() {}
	}
	stop, err := w.Watch(fn)
	if err != nil {
		s.logger.Warn("flag watch failed", "error", err)
		return func() {}
	}
	return stop
}

// Close cancels pending self-expiry timers. The backend is left open.
func (s *Store) Close() {
	s.stopAllTimers()
}

func (s *Store) stopTimer(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

func (s *Store) stopAllTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
