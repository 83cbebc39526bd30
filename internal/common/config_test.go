package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 1, config.Providers.Yahoo.Priority)
	assert.Equal(t, "info", config.Logging.Level)
	assert.False(t, config.IsProduction())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.toml")
	content := `
environment = "production"

[server]
port = 9090

[storage]
path = "data/marketd.db"

[providers.finnhub]
api_key = "test-key"
priority = 5

[scheduler]
symbol_refresh_cron = "0 4 * * *"
exchanges = ["US"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "data/marketd.db", config.Storage.Path)
	assert.Equal(t, "test-key", config.Providers.Finnhub.APIKey)
	assert.Equal(t, 5, config.Providers.Finnhub.Priority)
	assert.Equal(t, []string{"US"}, config.Scheduler.Exchanges)
	assert.True(t, config.IsProduction())

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 1, config.Providers.Yahoo.Priority)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverridesApplyAPIKeys(t *testing.T) {
	t.Setenv("MARKETD_FINNHUB_API_KEY", "env-key")
	t.Setenv("MARKETD_LOG_LEVEL", "debug")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", config.Providers.Finnhub.APIKey)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestProviderTimeout(t *testing.T) {
	cfg := ProviderConfig{Timeout: "15s"}
	assert.Equal(t, 15*time.Second, cfg.GetTimeout())

	cfg.Timeout = "bogus"
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())

	cfg.Timeout = ""
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
}
