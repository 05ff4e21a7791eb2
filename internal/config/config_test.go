package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gbfs-cli/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 20.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, "utf-8", cfg.Fetch.Encoding)
	assert.Zero(t, cfg.Fetch.CacheTTL())
	assert.Equal(t, "en", cfg.GBFS.Language)
	assert.Equal(t, "strict", cfg.GBFS.JoinPolicy)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "gbfs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.RefreshInterval())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "systems.yaml", cfg.Catalog.Path)
	assert.Equal(t, 300, cfg.Monitoring.StaleAfterSecs)
	assert.Equal(t, time.Minute, cfg.Monitoring.CheckInterval())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/gbfs
log:
  level: debug
  format: console
gbfs:
  language: fr
  join_policy: lenient
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/gbfs", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "fr", cfg.GBFS.Language)
	assert.Equal(t, "lenient", cfg.GBFS.JoinPolicy)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("GBFS_STORE_DRIVER", "postgres")
	t.Setenv("GBFS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GBFS_SERVER_PORT=3000\nGBFS_FETCH_USER_AGENT=dotenv-agent\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("GBFS_SERVER_PORT")      //nolint:errcheck
		os.Unsetenv("GBFS_FETCH_USER_AGENT") //nolint:errcheck
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "dotenv-agent", cfg.Fetch.UserAgent)
}

func TestLoadDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GBFS_GBFS_LANGUAGE=de\n"), 0o600))
	t.Setenv("GBFS_GBFS_LANGUAGE", "es")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "es", cfg.GBFS.Language)
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

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Fetch.TimeoutSecs = 30
	cfg.Fetch.MaxRetries = 3
	cfg.Fetch.RatePerSec = 20
	cfg.GBFS.JoinPolicy = "strict"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "gbfs.db"
	cfg.Server.Port = 8080
	cfg.Server.RefreshSecs = 60
	cfg.Monitoring.StaleAfterSecs = 300
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("update"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 8080
	cfg.Server.RefreshSecs = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.refresh_secs")
}

func TestValidateServe_StaleWindowShorterThanRefresh(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.StaleAfterSecs = 30
	assert.ErrorContains(t, cfg.Validate("serve"), "monitoring.stale_after_secs")
}

func TestValidateMigrate_NoDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate("migrate"), "store.database_url is required")
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.TimeoutSecs = 0
	cfg.Fetch.MaxRetries = 0
	cfg.GBFS.JoinPolicy = "sometimes"
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.timeout_secs")
	assert.Contains(t, err.Error(), "fetch.max_retries")
	assert.Contains(t, err.Error(), "gbfs.join_policy")
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
