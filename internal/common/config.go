// Package common provides shared utilities for Nemwatch
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Nemwatch
type Config struct {
	Environment string        `toml:"environment"`
	Region      string        `toml:"region"` // NEM region code (NSW1, QLD1, VIC1, SA1, TAS1)
	Server      ServerConfig  `toml:"server"`
	Clients     ClientsConfig `toml:"clients"`
	Poller      PollerConfig  `toml:"poller"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Nemweb NemwebConfig `toml:"nemweb"`
}

// NemwebConfig holds NEMWEB archive client configuration
type NemwebConfig struct {
	BaseURL         string `toml:"base_url"`
	RateLimit       int    `toml:"rate_limit"`
	ListTimeout     string `toml:"list_timeout"`     // directory listing requests
	DownloadTimeout string `toml:"download_timeout"` // full archive downloads
}

// GetListTimeout parses and returns the directory listing timeout
func (c *NemwebConfig) GetListTimeout() time.Duration {
	d, err := time.ParseDuration(c.ListTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetDownloadTimeout parses and returns the archive download timeout
func (c *NemwebConfig) GetDownloadTimeout() time.Duration {
	d, err := time.ParseDuration(c.DownloadTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// PollerConfig holds polling scheduler configuration
type PollerConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Region:      "NSW1",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Clients: ClientsConfig{
			Nemweb: NemwebConfig{
				BaseURL:         "https://nemweb.com.au/Reports/Current",
				RateLimit:       5,
				ListTimeout:     "30s",
				DownloadTimeout: "60s",
			},
		},
		Poller: PollerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	// Validate region code
	if err := validateRegion(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NEMWATCH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NEMWATCH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("NEMWATCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if region := os.Getenv("NEMWATCH_REGION"); region != "" {
		config.Region = strings.ToUpper(region)
	}

	if level := os.Getenv("NEMWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if url := os.Getenv("NEMWATCH_NEMWEB_URL"); url != "" {
		config.Clients.Nemweb.BaseURL = url
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateRegion ensures the configured region is one of the five NEM regions.
func validateRegion(config *Config) error {
	region := strings.ToUpper(strings.TrimSpace(config.Region))
	switch region {
	case "NSW1", "QLD1", "VIC1", "SA1", "TAS1":
		config.Region = region
		return nil
	}
	return fmt.Errorf("invalid NEM region %q: must be one of NSW1, QLD1, VIC1, SA1, TAS1", config.Region)
}
