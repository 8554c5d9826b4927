package app

import (
	"fmt"

	"github.com/ochronus/goneocities/internal/config"
	"github.com/ochronus/goneocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
)

// Container centralizes the core dependencies used across the application.
// It is intentionally small and uses interfaces so callers (and tests) can
// substitute implementations easily.
type Container struct {
	Config              *config.Config
	Logger              *logrus.Logger
	Client              neocities.ClientAPI
	ValidateCredentials bool
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithClient overrides the default Neocities client.
func WithClient(client neocities.ClientAPI) Option {
	return func(c *Container) error {
		if client == nil {
			return fmt.Errorf("neocities client cannot be nil")
		}
		c.Client = client
		return nil
	}
}

// WithCredentialValidation enables or disables the credential check against
// the info endpoint (default: disabled).
func WithCredentialValidation(validate bool) Option {
	return func(c *Container) error {
		c.ValidateCredentials = validate
		return nil
	}
}

// NewContainer builds a Container with defaults derived from cfg.
// Options can be supplied to override specific dependencies (useful in tests).
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config: cfg,
		Logger: BuildLogger(cfg.Loglevel),
	}

	// Apply options early so tests can inject mocks before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.Client == nil {
		container.Client = buildClient(cfg)
	}

	if container.ValidateCredentials {
		body, err := container.Client.Info()
		if err == nil {
			err = neocities.CheckResult(body)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to verify neocities credentials: %w", err)
		}
	}

	return container, nil
}

// BuildLogger returns the logrus logger used by every command.
func BuildLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func buildClient(cfg *config.Config) *neocities.Client {
	opts := []neocities.Option{
		neocities.WithBaseURL(cfg.BaseURL),
		neocities.WithTimeout(cfg.TimeoutDuration()),
	}
	if cfg.HasAPIKey() {
		return neocities.NewClientWithKey(cfg.APIKey, opts...)
	}
	return neocities.NewClient(cfg.Username, cfg.Password, opts...)
}
