package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "rx-intel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://npiregistry.cms.hhs.gov/api/", cfg.Registry.BaseURL)
	assert.Equal(t, 3, cfg.Registry.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Registry.RateLimit, 0.001)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 500, cfg.Batch.ShardSize)
	assert.False(t, cfg.DocGen.Enabled())
	assert.Equal(t, 15, cfg.DocGen.TimeoutSecs)
	assert.Equal(t, DefaultEstimate(), cfg.Estimate)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/rx
log:
  level: debug
  format: console
server:
  port: 9090
estimate:
  subscription_price: 225
docgen:
  base_url: http://docgen.internal
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 225.0, cfg.Estimate.SubscriptionPrice, 0.001)
	assert.True(t, cfg.DocGen.Enabled())
	// Defaults still apply for unset values
	assert.InDelta(t, 37.0, cfg.Estimate.LossPerFill, 0.001)
	assert.Equal(t, 60, cfg.Estimate.MFPDaysOutstanding)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RXINTEL_STORE_DRIVER", "postgres")
	t.Setenv("RXINTEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("RXINTEL_SERVER_PORT", "3000")
	t.Setenv("RXINTEL_ESTIMATE_LOSS_PER_FILL", "41.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 41.5, cfg.Estimate.LossPerFill, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "rx-intel.db"
	cfg.Server.Port = 8080
	cfg.Estimate = DefaultEstimate()
	cfg.Registry.BaseURL = "https://npiregistry.cms.hhs.gov/api/"
	cfg.Batch.Concurrency = 8
	cfg.Batch.ShardSize = 500
	return cfg
}

func TestValidate_AllModesPass(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "import", "reverify", "export", "cli"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 70000
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port out of range")
}

func TestValidateReverify(t *testing.T) {
	cfg := validDefaults()
	cfg.Registry.BaseURL = ""
	cfg.Batch.Concurrency = 0

	err := cfg.Validate("reverify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.base_url is required")
	assert.Contains(t, err.Error(), "batch.concurrency must be > 0")

	// Registry settings don't matter for serve.
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateEstimate(t *testing.T) {
	cfg := validDefaults()
	cfg.Estimate.SubscriptionPrice = 0
	cfg.Estimate.MinMarketShare = 3

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimate.subscription_price must be > 0")
	assert.Contains(t, err.Error(), "market share clamp")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
