package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/config"
	"github.com/warp/dashboard-engine/store"
)

func missingDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG_PATH", "")

	cfg, err := config.Load(missingDotenv(t))

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, store.DriverFile, cfg.StoreOptions().Driver)
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	// GIVEN: A YAML file and an env override for one of its keys
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8081
  allowedOrigins: ["http://localhost:3001"]
store:
  driver: s3
  s3:
    bucket: dash
    region: eu-west-2
log:
  level: debug
  format: json
cache:
  staleAfter: 90s
seed:
  sample: false
schemas: ./schemas.yaml
`), 0o644))
	t.Setenv("DASHBOARD_CONFIG_PATH", path)
	t.Setenv("DASHBOARD_SERVER_PORT", "9090")
	t.Setenv("DASHBOARD_S3_PATH_STYLE", "true")

	// WHEN: Loading
	cfg, err := config.Load(missingDotenv(t))

	// THEN: Env beats file, file beats defaults
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3001"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Cache.StaleAfter)
	assert.False(t, cfg.Seed.Sample)
	assert.Equal(t, "./schemas.yaml", cfg.Schemas)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout, "untouched defaults survive")

	opts := cfg.StoreOptions()
	assert.Equal(t, store.DriverS3, opts.Driver)
	assert.Equal(t, "dash", opts.S3.Bucket)
	assert.True(t, opts.S3.PathStyle)
}

func TestLoad_DotenvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DASHBOARD_LOG_LEVEL=warn\nDASHBOARD_DATA_DIR=/srv/dotenv\n"), 0o644))
	t.Setenv("DASHBOARD_CONFIG_PATH", "")
	t.Setenv("DASHBOARD_DATA_DIR", "/srv/process")
	// Registered so t cleans up the variable the .env file sets.
	t.Setenv("DASHBOARD_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("DASHBOARD_LOG_LEVEL"))

	cfg, err := config.Load(dotenv)

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/process", cfg.Store.DataDir)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"bad port":    {"DASHBOARD_SERVER_PORT", "http"},
		"port range":  {"DASHBOARD_SERVER_PORT", "70000"},
		"driver":      {"DASHBOARD_STORE_DRIVER", "mongo"},
		"log level":   {"DASHBOARD_LOG_LEVEL", "loud"},
		"log format":  {"DASHBOARD_LOG_FORMAT", "xml"},
		"stale after": {"DASHBOARD_CACHE_STALE_AFTER", "soon"},
		"seed":        {"DASHBOARD_SEED_SAMPLE", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DASHBOARD_CONFIG_PATH", "")
			t.Setenv(kv[0], kv[1])

			_, err := config.Load(missingDotenv(t))

			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := config.Load(missingDotenv(t))

	assert.ErrorContains(t, err, "read config file")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "type", "clients")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"type":"clients"`)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := config.ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
