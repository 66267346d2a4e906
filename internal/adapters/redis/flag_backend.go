package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nreinfusion/onehub-session/internal/ports"
)

var (
	_ ports.FlagBackend = (*FlagBackend)(nil)
	_ ports.FlagWatcher = (*FlagBackend)(nil)
)

const defaultFlagPrefix = "onehub:flags:"

// FlagBackendOptions configures FlagBackend.
type FlagBackendOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional: key namespace, default "onehub:flags:"
	Logger *slog.Logger          // Optional
}

// FlagBackend stores flags as plain Redis strings under a prefix. Every write
// is announced on a pub/sub channel so processes on other hosts see it.
type FlagBackend struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	logger  *slog.Logger
}

// NewFlagBackend creates a Redis flag backend.
func NewFlagBackend(opts FlagBackendOptions) (*FlagBackend, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultFlagPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FlagBackend{
		client:  opts.Client,
		prefix:  prefix,
		channel: prefix + "__changes",
		logger:  logger.With("component", "redis_flags"),
	}, nil
}

func (b *FlagBackend) key(k string) string { return b.prefix + k }

func (b *FlagBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (b *FlagBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	b.publish(ctx, key)
	return nil
}

func (b *FlagBackend) Delete(ctx context.Context, key string) error {
	n, err := b.client.Del(ctx, b.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n > 0 {
		b.publish(ctx, key)
	}
	return nil
}

// Keys lists flag keys with the prefix stripped. The change channel is not a key.
func (b *FlagBackend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), b.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

func (b *FlagBackend) Clear(ctx context.Context) error {
	keys, err := b.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (b *FlagBackend) publish(ctx context.Context, key string) {
	if err := b.client.Publish(ctx, b.channel, key).Err(); err != nil {
		b.logger.Warn("flag change publish failed", "key", key, "error", err)
	}
}

// Watch subscribes to the change channel. It returns once the subscription is
// confirmed, so writes made after Watch returns are always delivered.
func (b *FlagBackend) Watch(fn func(key string)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range pubsub.Channel() {
			fn(msg.Payload)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("flag watch close failed", "error", err)
			}
			wg.Wait()
		})
	}, nil
}
