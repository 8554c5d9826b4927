package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

const (
	MinTimeout         = 1
	MaxTimeout         = 600
	MinHashWorkers     = 1
	MaxHashWorkers     = 64
	MinUploadBatchSize = 1
	MaxUploadBatchSize = 100
)

// Config represents the main application configuration
type Config struct {
	Username        string           `toml:"username"`
	Password        string           `toml:"password"`
	APIKey          string           `toml:"api_key"`
	BaseURL         string           `toml:"base_url"`
	Loglevel        string           `toml:"loglevel"`
	Timeout         int              `toml:"timeout"`
	SiteDirectory   string           `toml:"site_directory"`
	Exclude         []string         `toml:"exclude"`
	HashWorkers     int              `toml:"hash_workers"`
	UploadBatchSize int              `toml:"upload_batch_size"`
	DeleteRemote    bool             `toml:"delete_remote"`
	MockServer      MockServerConfig `toml:"mock_server"`
}

// MockServerConfig holds settings for the local mock API server
type MockServerConfig struct {
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
	Sitename    string `toml:"sitename"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://neocities.org",
		Loglevel:        "info",
		Timeout:         30,
		Exclude:         []string{".git", ".DS_Store", "*.swp"},
		HashWorkers:     4,
		UploadBatchSize: 20,
		MockServer: MockServerConfig{
			BindAddress: "127.0.0.1",
			Port:        4567,
			Sitename:    "localsite",
		},
	}
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "goneocities")

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads configuration from a TOML file
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// TimeoutDuration returns the HTTP timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// HasAPIKey reports whether key authentication is configured. It takes
// precedence over username and password.
func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIKey == "" {
		if c.Username == "" {
			return fmt.Errorf("api_key or username is required")
		}
		if c.Password == "" {
			return fmt.Errorf("password is required when api_key is not set")
		}
	}

	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.ParseRequestURI(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is invalid: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https")
	}

	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}

	if c.SiteDirectory != "" {
		info, err := os.Stat(c.SiteDirectory)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("site_directory does not exist: %s", c.SiteDirectory)
			}
			return fmt.Errorf("unable to stat site_directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("site_directory is not a directory: %s", c.SiteDirectory)
		}
	}

	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout must be between %d and %d seconds", MinTimeout, MaxTimeout)
	}
	if c.HashWorkers < MinHashWorkers || c.HashWorkers > MaxHashWorkers {
		return fmt.Errorf("hash_workers must be between %d and %d", MinHashWorkers, MaxHashWorkers)
	}
	if c.UploadBatchSize < MinUploadBatchSize || c.UploadBatchSize > MaxUploadBatchSize {
		return fmt.Errorf("upload_batch_size must be between %d and %d", MinUploadBatchSize, MaxUploadBatchSize)
	}

	if c.MockServer.Port < 0 || c.MockServer.Port > 65535 {
		return fmt.Errorf("mock_server.port must be between 0 and 65535")
	}
	if c.MockServer.Sitename == "" {
		return fmt.Errorf("mock_server.sitename is required")
	}

	return nil
}
