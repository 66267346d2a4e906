package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		slog.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.InitLogger(cfg.Observability.Logging, cfg.IsDev)

	logStartupInfo(ctx, logger, &cfg)

	redisClient, err := initInfrastructure(&cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	m := bootstrap.BuildMetrics(cfg.Observability.Metrics, logger)
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics failed", "error", cerr)
		}
	}()

	authSvc, err := bootstrap.BuildAuthService(bootstrap.AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Auth:    authSvc,
		Metrics: m,
		Logger:  logger,
	})

	<-sigCtx.Done()
	logger.InfoContext(ctx, "shutdown signal received")

	return bootstrap.ShutdownHTTPServer(bootstrap.ShutdownConfig{
		Context: ctx,
		Server:  server,
		Timeout: cfg.HTTP.ShutdownTimeout,
		Logger:  logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting onehub dev auth server",
		"addr", cfg.HTTP.Addr,
		"session_store", cfg.Auth.SessionStore,
		"dev_user", cfg.Auth.DevUser.Email,
		"metrics_enabled", cfg.Observability.Metrics.IsEnabled(),
		"metrics_driver", cfg.Observability.Metrics.Driver)
}

// initInfrastructure connects Redis when the session store or flag backend needs it.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if !bootstrap.DevServerNeedsRedis(cfg) {
		return nil, nil
	}
	client, err := bootstrap.ConnectRedis(bootstrap.RedisConnConfig{
		Redis:  cfg.Flags.Redis,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
