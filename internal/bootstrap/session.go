package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/adapters/suiteapi"
	"github.com/nreinfusion/onehub-session/internal/flagstore"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
	"github.com/nreinfusion/onehub-session/internal/ports"
	"github.com/nreinfusion/onehub-session/internal/service"
)

// SessionConfig contains the dependencies of one session controller and its API client.
type SessionConfig struct {
	Config *config.AppConfig
	Flags  *flagstore.Store

	Navigator ports.Navigator
	Notifier  ports.Notifier
	Activity  ports.ActivitySource

	Metrics metrics.Sink
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// Session is a wired session controller together with the client it drives.
type Session struct {
	Client     *suiteapi.Client
	Controller *service.SessionController
}

// BuildSuiteClient creates the suite API client.
func BuildSuiteClient(cfg SessionConfig) (*suiteapi.Client, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	client, err := suiteapi.New(suiteapi.Options{
		Config: cfg.Config.Client,
		Flags:  cfg.Flags,
		Clock:  cfg.Clock,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create suite client: %w", err)
	}
	return client, nil
}

// BuildSession creates the suite API client and the session controller around it.
func BuildSession(cfg SessionConfig) (*Session, error) {
	client, err := BuildSuiteClient(cfg)
	if err != nil {
		return nil, err
	}

	controller, err := service.NewSessionController(service.SessionControllerOptions{
		API:       client,
		Flags:     cfg.Flags,
		Navigator: cfg.Navigator,
		Notifier:  cfg.Notifier,
		Activity:  cfg.Activity,
		Config:    cfg.Config.Session,
		Branding:  cfg.Config.Branding,
		Clock:     cfg.Clock,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create session controller: %w", err)
	}

	return &Session{Client: client, Controller: controller}, nil
}
