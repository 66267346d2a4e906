package main

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nreinfusion/onehub-session/internal/bootstrap"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
)

// sessionEnv holds what one CLI invocation opened. Close releases it in
// reverse order of construction.
type sessionEnv struct {
	Flags   *flagstore.Store
	Metrics bootstrap.Metrics
	Session *bootstrap.Session

	redis  redis.UniversalClient
	logger *slog.Logger
}

// openFlags connects the configured flag backend (and Redis when it needs it)
// and the metrics sink.
func openFlags(cmdCtx *commandContext) (*sessionEnv, error) {
	env := &sessionEnv{logger: cmdCtx.Logger}

	if bootstrap.NeedsRedis(&cmdCtx.Config) {
		client, err := bootstrap.ConnectRedis(bootstrap.RedisConnConfig{
			Redis:  cmdCtx.Config.Flags.Redis,
			Logger: cmdCtx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		env.redis = client
	}

	store, err := bootstrap.BuildFlagStore(bootstrap.FlagStoreConfig{
		Flags:       cmdCtx.Config.Flags,
		RedisClient: env.redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Flags = store
	env.Metrics = bootstrap.BuildMetrics(cmdCtx.Config.Observability.Metrics, cmdCtx.Logger)
	return env, nil
}

// openSession builds a session controller around the terminal adapters.
func openSession(cmdCtx *commandContext, term *terminal) (*sessionEnv, error) {
	env, err := openFlags(cmdCtx)
	if err != nil {
		return nil, err
	}

	session, err := bootstrap.BuildSession(bootstrap.SessionConfig{
		Config:    &cmdCtx.Config,
		Flags:     env.Flags,
		Navigator: term.nav,
		Notifier:  term.notifier,
		Activity:  term.activity,
		Metrics:   env.Metrics.Sink,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Session = session
	return env, nil
}

func (e *sessionEnv) Close() {
	if e.Session != nil {
		e.Session.Controller.Close()
	}
	if e.Flags != nil {
		e.Flags.Close()
	}
	if err := e.Metrics.Close(); err != nil {
		e.logger.Warn("metrics close failed", "error", err)
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis close failed", "error", err)
		}
	}
}
