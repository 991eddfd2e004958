package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CONFIG_FILE", "APP_ENV", "LOG_FORMAT", "LOG_LEVEL",
	"HTTP_ADDR", "HTTP_MAX_BODY_BYTES", "PARKOUR_API_SECRET", "TOKEN_TTL",
	"PARKOUR_API_SAVE_TIMER", "SNAPSHOT_INTERVAL", "SNAPSHOT_BACKEND", "DATA_DIR",
	"REDIS_ADDR", "REDIS_DB", "REDIS_PREFIX", "REDIS_TTL", "DATABASE_URL", "SQLITE_PATH",
	"S3_BUCKET", "S3_PREFIX", "S3_REGION", "S3_ENDPOINT", "S3_FORCE_PATH_STYLE",
	"SCOREBOARD_DEFAULT_ID",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PARKOUR_API_SECRET", "s3cret")

	c, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":3030", c.HTTP.Addr)
	assert.Equal(t, 15*time.Minute, c.Snapshot.Interval)
	assert.Equal(t, BackendFile, c.Snapshot.Backend)
	assert.Equal(t, "data", c.Snapshot.Dir)
	assert.Equal(t, int64(16<<10), c.HTTP.MaxBodyBytes)

	lvl, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoadFromEnv_RequiresSecret(t *testing.T) {
	cleanEnv(t)
	_, err := LoadFromEnv()
	require.ErrorContains(t, err, "PARKOUR_API_SECRET")
}

func TestLoadFromEnv_SaveTimer(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PARKOUR_API_SECRET", "s3cret")
	t.Setenv("PARKOUR_API_SAVE_TIMER", "5")

	c, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.Snapshot.Interval)

	t.Setenv("SNAPSHOT_INTERVAL", "5s")
	c, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Snapshot.Interval)
}

func TestLoadFromEnv_FileThenEnv(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  secret: from-file
snapshot:
  backend: redis
  interval: 30s
redis:
  addr: redis:6379
  db: 2
log:
  format: json
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_DB", "4")

	c, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Auth.Secret)
	assert.Equal(t, BackendRedis, c.Snapshot.Backend)
	assert.Equal(t, 30*time.Second, c.Snapshot.Interval)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, 4, c.Redis.DB)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, ":3030", c.HTTP.Addr)
}

func TestLoadFromEnv_BadFile(t *testing.T) {
	cleanEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := defaults()
	base.Auth.Secret = "s3cret"
	require.NoError(t, base.Validate())

	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Snapshot.Backend = "floppy" }},
		{"s3 without bucket", func(c *Config) { c.Snapshot.Backend = BackendS3 }},
		{"postgres without url", func(c *Config) { c.Snapshot.Backend = BackendPostgres }},
		{"zero interval", func(c *Config) { c.Snapshot.Interval = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"blank secret", func(c *Config) { c.Auth.Secret = "   " }},
		{"no body limit", func(c *Config) { c.HTTP.MaxBodyBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mod(&c)
			require.Error(t, c.Validate())
		})
	}
}
