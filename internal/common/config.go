// Package common provides shared utilities for marketd
package common

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for marketd
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Providers   ProvidersConfig `toml:"providers"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the historical datastore configuration.
// An empty path disables the datastore tier entirely; the engine
// then runs provider-only.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ProvidersConfig holds per-provider client configuration
type ProvidersConfig struct {
	Yahoo        ProviderConfig `toml:"yahoo"`
	Finnhub      ProviderConfig `toml:"finnhub"`
	AlphaVantage ProviderConfig `toml:"alphavantage"`
}

// ProviderConfig holds configuration for a single upstream data source.
// Priority is fixed at construction; lower values are tried first.
type ProviderConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	Priority     int    `toml:"priority"`
	MaxPerMinute int    `toml:"max_per_minute"`
	MaxPerDay    int    `toml:"max_per_day"`
	Timeout      string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SchedulerConfig holds background scheduler configuration
type SchedulerConfig struct {
	SymbolRefreshCron string   `toml:"symbol_refresh_cron"` // cron spec, empty disables
	Exchanges         []string `toml:"exchanges"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// IsProduction returns true when the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultConfig returns a configuration with sensible defaults.
// The Yahoo provider is keyless, so a default config is fully functional.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Providers: ProvidersConfig{
			Yahoo: ProviderConfig{
				Priority:     1,
				MaxPerMinute: 60,
				MaxPerDay:    8000,
				Timeout:      "15s",
			},
			Finnhub: ProviderConfig{
				Priority:     2,
				MaxPerMinute: 60,
				MaxPerDay:    5000,
				Timeout:      "15s",
			},
			AlphaVantage: ProviderConfig{
				Priority:     3,
				MaxPerMinute: 5,
				MaxPerDay:    500,
				Timeout:      "30s",
			},
		},
		Scheduler: SchedulerConfig{
			SymbolRefreshCron: "0 3 * * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a TOML file, applying defaults
// for any section left unset. A missing file returns the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(config)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides lets API keys come from the environment without
// writing them into the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("MARKETD_FINNHUB_API_KEY"); v != "" {
		config.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("MARKETD_ALPHAVANTAGE_API_KEY"); v != "" {
		config.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("MARKETD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
