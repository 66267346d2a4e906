// Package querycache is a keyed async result cache: one fetch per key at a
// time, a pluggable retry policy, and stale-time memoization.
package querycache

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultGCTime is how long an unused entry is kept before eviction.
	DefaultGCTime = 10 * time.Minute
	// DefaultSize bounds the number of keys held.
	DefaultSize = 128
)

// ErrRemoved is returned by Fetch when the entry was removed or cleared while
// the fetch was in flight. The fetched result is discarded.
var ErrRemoved = errors.New("querycache: entry removed during fetch")

// Entry is the memoized state of one key.
type Entry[T any] struct {
	Data    T
	HasData bool
	Err     error
	Loading bool
	// FailureCount is the number of failed attempts of the latest fetch.
	FailureCount int
	UpdatedAt    time.Time
	// Invalidated marks the entry stale regardless of StaleTime.
	Invalidated bool
}

// RetryFunc decides whether a failed attempt is retried and after what delay.
// retries is the number of retries already performed for this fetch.
type RetryFunc func(retries int, err error) (retry bool, delay time.Duration)

// FetchOptions tunes a single Fetch call.
type FetchOptions struct {
	// StaleTime is how long successful data is served without refetching.
	StaleTime time.Duration
	// Retry is consulted after each failure. Nil disables retries.
	Retry RetryFunc
	// Force refetches even when the cached data is fresh.
	Force bool
}

// Options configures a Cache.
type Options struct {
	GCTime time.Duration
	Size   int
	Clock  clockwork.Clock
}

// Cache holds entries of type T keyed by string.
type Cache[T any] struct {
	entries *lru.LRU[string, Entry[T]]
	group   singleflight.Group
	clock   clockwork.Clock

	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

// New constructs a Cache.
func New[T any](opts Options) *Cache[T] {
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Cache[T]{
		entries: lru.NewLRU[string, Entry[T]](opts.Size, nil, opts.GCTime),
		clock:   opts.Clock,
		gens:    make(map[string]uint64),
	}
}

// Get returns the current entry for key.
func (c *Cache[T]) Get(key string) (Entry[T], bool) {
	return c.entries.Get(key)
}

// SetData replaces the data for key and clears any error.
func (c *Cache[T]) SetData(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, Entry[T]{Data: data, HasData: true, UpdatedAt: c.clock.Now()})
}

// Invalidate marks key stale so the next Fetch goes to the network.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok {
		e.Invalidated = true
		c.entries.Add(key, e)
	}
}

// Remove drops key. A fetch in flight for key completes with ErrRemoved.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.entries.Remove(key)
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Purge()
}

// Fetch returns fresh cached data for key or runs fetch. Concurrent callers for
// the same key share one execution, including its retries.
func (c *Cache[T]) Fetch(ctx context.Context, key string, fetch func(context.Context) (T, error), opts FetchOptions) (T, error) {
	if !opts.Force {
		if e, ok := c.entries.Get(key); ok && c.fresh(e, opts.StaleTime) {
			return e.Data, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.run(ctx, key, fetch, opts.Retry)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache[T]) fresh(e Entry[T], staleTime time.Duration) bool {
	return e.HasData && e.Err == nil && !e.Invalidated && !e.Loading &&
		c.clock.Since(e.UpdatedAt) < staleTime
}

func (c *Cache[T]) run(ctx context.Context, key string, fetch func(context.Context) (T, error), retry RetryFunc) (T, error) {
	c.mu.Lock()
	gen := generation{key: c.gens[key], epoch: c.epoch}
	prev, _ := c.entries.Peek(key)
	prev.Loading = true
	c.entries.Add(key, prev)
	c.mu.Unlock()

	var zero T
	retries := 0
	for {
		data, err := fetch(ctx)
		if err == nil {
			if !c.commit(key, gen, Entry[T]{Data: data, HasData: true, UpdatedAt: c.clock.Now()}) {
				return zero, ErrRemoved
			}
			return data, nil
		}

		again, delay := false, time.Duration(0)
		if retry != nil {
			again, delay = retry(retries, err)
		}
		if again && ctx.Err() == nil {
			select {
			case <-ctx.Done():
				err = errors.Join(err, ctx.Err())
			case <-c.clock.After(delay):
				retries++
				continue
			}
		}

		failed := prev
		failed.Loading = false
		failed.Err = err
		failed.FailureCount = retries + 1
		failed.UpdatedAt = c.clock.Now()
		if !c.commit(key, gen, failed) {
			return zero, ErrRemoved
		}
		return zero, err
	}
}

type generation struct {
	key   uint64
	epoch uint64
}

// commit stores e unless key was removed or the cache cleared since gen was read.
func (c *Cache[T]) commit(key string, gen generation, e Entry[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen.key || c.epoch != gen.epoch {
		return false
	}
	c.entries.Add(key, e)
	return true
}
