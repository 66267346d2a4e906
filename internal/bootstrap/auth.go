package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/adapters/authroles"
	"github.com/nreinfusion/onehub-session/internal/adapters/devauth"
	redisadapter "github.com/nreinfusion/onehub-session/internal/adapters/redis"
	"github.com/nreinfusion/onehub-session/internal/ports"
	"github.com/nreinfusion/onehub-session/internal/service"
)

// AuthConfig contains configuration for the dev server's auth service.
type AuthConfig struct {
	Auth config.AuthConfig
	// RedisClient is required when Auth.SessionStore is redis.
	RedisClient redis.UniversalClient
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// BuildAuthService wires the dev verifier, the configured session store and
// the static role mapper into an AuthService.
func BuildAuthService(cfg AuthConfig) (*service.AuthService, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sessions, err := buildSessionStore(cfg, clock)
	if err != nil {
		return nil, err
	}

	user := cfg.Auth.DevUser
	verifier, err := devauth.NewVerifier(devauth.Config{
		ID:           user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PseudoName:   user.PseudoName,
		Groups:       user.Groups,
		Password:     user.Password,
		PasswordHash: user.PasswordHash,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev verifier: %w", err)
	}

	roleMapper := authroles.StaticRoleMapper{
		AdminGroup:     cfg.Auth.AdminGroup,
		MarketingGroup: cfg.Auth.MarketingGroup,
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("dev auth enabled",
			"email", user.Email,
			"session_store", cfg.Auth.SessionStore,
			"session_ttl", cfg.Auth.SessionTTL,
		)
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Verifier: verifier,
		Sessions: sessions,
		Roles:    roleMapper,
		TTL:      cfg.Auth.SessionTTL,
		Clock:    clock,
		Logger:   cfg.Logger,
	}), nil
}

//nolint:ireturn // the store implementation is selected by configuration.
func buildSessionStore(cfg AuthConfig, clock clockwork.Clock) (ports.SessionStore, error) {
	switch cfg.Auth.SessionStore {
	case config.SessionStoreRedis:
		if cfg.RedisClient == nil {
			return nil, errors.New("redis session store selected but redis client not configured")
		}
		return redisadapter.NewSessionStoreWithPrefix(cfg.RedisClient, cfg.Auth.SessionKeyPrefix).WithClock(clock), nil
	case config.SessionStoreMemory, "":
		return devauth.NewMemorySessionStore(clock), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Auth.SessionStore)
	}
}
