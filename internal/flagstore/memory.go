package flagstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nreinfusion/onehub-session/internal/ports"
)

// ErrQuotaExceeded is returned when a write would exceed the backend's byte quota.
var ErrQuotaExceeded = errors.New("flag storage quota exceeded")

var (
	_ ports.FlagBackend = (*MemoryBackend)(nil)
	_ ports.FlagWatcher = (*MemoryBackend)(nil)
)

// MemoryBackend is an in-process FlagBackend. Several Stores sharing one
// MemoryBackend behave like same-origin tabs sharing localStorage.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string]string
	maxBytes int

	watchMu  sync.Mutex
	watchers map[int]func(string)
	nextID   int
}

// NewMemoryBackend creates an unbounded in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithQuota(0)
}

// NewMemoryBackendWithQuota creates an in-memory backend that rejects writes once
// the summed length of keys and values would exceed maxBytes. Zero disables the quota.
func NewMemoryBackendWithQuota(maxBytes int) *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string]string),
		maxBytes: maxBytes,
		watchers: make(map[int]func(string)),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	if m.maxBytes > 0 {
		used := 0
		for k, v := range m.data {
			if k != key {
				used += len(k) + len(v)
			}
		}
		if used+len(key)+len(value) > m.maxBytes {
			m.mu.Unlock()
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	m.mu.Unlock()

	m.notify(key)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if existed {
		m.notify(key)
	}
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.data = make(map[string]string)
	m.mu.Unlock()

	for _, k := range keys {
		m.notify(k)
	}
	return nil
}

// Watch registers fn for every subsequent write or delete.
func (m *MemoryBackend) Watch(fn func(key string)) (func(), error) {
	m.watchMu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.watchMu.Unlock()

	return func() {
		m.watchMu.Lock()
		delete(m.watchers, id)
		m.watchMu.Unlock()
	}, nil
}

func (m *MemoryBackend) notify(key string) {
	m.watchMu.Lock()
	fns := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
