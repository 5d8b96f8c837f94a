package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "discogs:\n  username: digger\n  token: secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.discogs.com", cfg.Discogs.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Discogs.RateLimit.DefaultWait)
	assert.Equal(t, 0, cfg.Discogs.RateLimit.MaxRetries)
	assert.Equal(t, 4, cfg.Discogs.Fields.PricePaidFallback)
	assert.Equal(t, 5, cfg.Discogs.Fields.SellerFallback)
	assert.Equal(t, 6, cfg.Discogs.Fields.BandCountryFallback)
	assert.Equal(t, "collection_cache.db", cfg.Cache.Path)
	assert.Equal(t, "collection_cache.csv", cfg.Cache.FallbackPath)
	assert.Equal(t, "collection_cache.db.lock", cfg.Cache.LockPath)
	assert.Equal(t, 5, cfg.Sync.PageSize)
	assert.Equal(t, 50, cfg.Sync.MaxPages)
	assert.Equal(t, 100, cfg.Sync.FullPageSize)
	assert.Equal(t, 200*time.Millisecond, cfg.Sync.PageDelay)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoRunDeadlineByDefault(t *testing.T) {
	path := writeConfig(t, "discogs:\n  username: digger\n  token: secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.Sync.Timeout)
	assert.Zero(t, cfg.Discogs.RateLimit.MaxRetries)
	assert.NoError(t, cfg.Validate())

	cfg.Sync.Timeout = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "sync.timeout must not be negative")
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CRATE_TEST_TOKEN", "from-env")
	path := writeConfig(t, `
log_level: debug
discogs:
  username: digger
  token: ${CRATE_TEST_TOKEN}
  folder_id: 3
sync:
  page_size: 25
  max_pages: 4
  page_delay: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Discogs.Token)
	assert.Equal(t, 3, cfg.Discogs.FolderID)
	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, 4, cfg.Sync.MaxPages)
	assert.Equal(t, time.Second, cfg.Sync.PageDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "discogs: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Sync.MaxPages = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discogs.username is required")
	assert.Contains(t, err.Error(), "discogs.token is required")
	assert.Contains(t, err.Error(), "sync.max_pages must be positive")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "crates", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=crates sslmode=disable", d.DSN())
}
