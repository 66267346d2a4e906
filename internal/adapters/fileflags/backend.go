// Package fileflags implements a flag backend stored in a single JSON file,
// shared by every process of the same user on one machine.
package fileflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

var (
	_ ports.FlagBackend = (*Backend)(nil)
	_ ports.FlagWatcher = (*Backend)(nil)
)

// Options configures Backend.
type Options struct {
	Path string // Required: JSON file, created on first write
	// QuotaBytes caps the summed length of keys and values. Zero disables it.
	QuotaBytes int
	Logger     *slog.Logger
}

// Backend keeps all flags in one JSON object. Writes replace the file
// atomically; concurrent writers in different processes race and the last
// rename wins.
type Backend struct {
	path   string
	quota  int
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a file backend. The parent directory is created if missing.
func New(opts Options) (*Backend, error) {
	if opts.Path == "" {
		return nil, errors.New("flag file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create flag directory: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		path:   opts.Path,
		quota:  opts.QuotaBytes,
		logger: logger.With("component", "file_flags"),
	}, nil
}

// Path returns the backing file.
func (b *Backend) Path() string { return b.path }

func (b *Backend) load() (map[string]string, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flag file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode flag file: %w", err)
	}
	return data, nil
}

func (b *Backend) store(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode flag file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".flags-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp flag file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp flag file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp flag file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace flag file: %w", err)
	}
	return nil
}

// update applies fn to the current contents and persists the result when fn
// reports a change.
func (b *Backend) update(fn func(map[string]string) (bool, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return err
	}
	changed, err := fn(data)
	if err != nil || !changed {
		return err
	}
	return b.store(data)
}

func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	return b.update(func(data map[string]string) (bool, error) {
		if b.quota > 0 {
			used := len(key) + len(value)
			for k, v := range data {
				if k != key {
					used += len(k) + len(v)
				}
			}
			if used > b.quota {
				return false, flagstore.ErrQuotaExceeded
			}
		}
		if old, ok := data[key]; ok && old == value {
			return false, nil
		}
		data[key] = value
		return true, nil
	})
}

func (b *Backend) Delete(_ context.Context, key string) error {
	return b.update(func(data map[string]string) (bool, error) {
		if _, ok := data[key]; !ok {
			return false, nil
		}
		delete(data, key)
		return true, nil
	})
}

func (b *Backend) Keys(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Clear(_ context.Context) error {
	return b.update(func(data map[string]string) (bool, error) {
		if len(data) == 0 {
			return false, nil
		}
		clear(data)
		return true, nil
	})
}

// Watch reports keys whose value changed in the file, whoever wrote it. The
// directory is watched because atomic replacement swaps the file's inode.
func (b *Backend) Watch(fn func(key string)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch flag directory: %w", err)
	}

	b.mu.Lock()
	last, err := b.load()
	b.mu.Unlock()
	if err != nil {
		last = map[string]string{}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(b.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				last = b.emitChanges(last, fn)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("flag watcher error", "error", werr)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = watcher.Close()
			<-done
		})
	}, nil
}

func (b *Backend) emitChanges(prev map[string]string, fn func(string)) map[string]string {
	b.mu.Lock()
	cur, err := b.load()
	b.mu.Unlock()
	if err != nil {
		// A half-visible file is retried on the next event.
		b.logger.Debug("flag file reload failed", "error", err)
		return prev
	}
	for _, key := range diffKeys(prev, cur) {
		fn(key)
	}
	return cur
}

// diffKeys returns the sorted keys that were added, removed or changed.
func diffKeys(prev, cur map[string]string) []string {
	var keys []string
	for k, v := range cur {
		if old, ok := prev[k]; !ok || old != v {
			keys = append(keys, k)
		}
	}
	for k := range prev {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
