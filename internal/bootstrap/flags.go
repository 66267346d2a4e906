package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/adapters/fileflags"
	redisadapter "github.com/nreinfusion/onehub-session/internal/adapters/redis"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

// FlagStoreConfig contains configuration for the shared flag store.
type FlagStoreConfig struct {
	Flags config.FlagsConfig
	// RedisClient is required for the redis backend.
	RedisClient redis.UniversalClient
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// BuildFlagStore creates the flag store over the configured backend.
func BuildFlagStore(cfg FlagStoreConfig) (*flagstore.Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "flagstore")

	backend, err := buildFlagBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("flag store ready", "backend", cfg.Flags.Backend)

	return flagstore.New(flagstore.Options{
		Backend: backend,
		Logger:  logger,
		Clock:   cfg.Clock,
	}), nil
}

//nolint:ireturn // the backend implementation is selected by configuration.
func buildFlagBackend(cfg FlagStoreConfig, logger *slog.Logger) (ports.FlagBackend, error) {
	switch cfg.Flags.Backend {
	case config.FlagBackendMemory:
		return flagstore.NewMemoryBackendWithQuota(cfg.Flags.QuotaBytes), nil
	case config.FlagBackendFile, "":
		backend, err := fileflags.New(fileflags.Options{
			Path:       cfg.Flags.FilePath,
			QuotaBytes: cfg.Flags.QuotaBytes,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open flag file: %w", err)
		}
		return backend, nil
	case config.FlagBackendRedis:
		if cfg.RedisClient == nil {
			return nil, errors.New("redis flag backend selected but redis client not configured")
		}
		backend, err := redisadapter.NewFlagBackend(redisadapter.FlagBackendOptions{
			Client: cfg.RedisClient,
			Prefix: cfg.Flags.KeyPrefix,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis flag backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown flag backend %q", cfg.Flags.Backend)
	}
}

// NeedsRedis reports whether the configuration requires a Redis connection.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg.Flags.Backend == config.FlagBackendRedis
}

// DevServerNeedsRedis reports whether the dev server requires a Redis connection.
func DevServerNeedsRedis(cfg *config.AppConfig) bool {
	return cfg.Auth.SessionStore == config.SessionStoreRedis || NeedsRedis(cfg)
}
