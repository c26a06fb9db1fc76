/*
Package config loads server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. .env files (existing process variables are never overridden)
  3. YAML file named by DASHBOARD_CONFIG_PATH
  4. DASHBOARD_* environment variables
  5. Command-line flags (applied by cmd/server)

EXAMPLE FILE:
  server:
    port: 3000
    allowedOrigins: ["http://localhost:3001"]
  store:
    driver: sqlite
    dataDir: ./data
  log:
    level: debug
    format: json
  cache:
    staleAfter: 5m
  seed:
    sample: true
  schemas: ./schemas.yaml
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/warp/dashboard-engine/store"
	"github.com/warp/dashboard-engine/store/s3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DASHBOARD_"

// Config defines server configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Store   StoreConfig  `yaml:"store"`
	Log     LogConfig    `yaml:"log"`
	Cache   CacheConfig  `yaml:"cache"`
	Seed    SeedConfig   `yaml:"seed"`
	Schemas string       `yaml:"schemas"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StoreConfig struct {
	Driver      string   `yaml:"driver"`
	DataDir     string   `yaml:"dataDir"`
	SQLitePath  string   `yaml:"sqlitePath"`
	PostgresDSN string   `yaml:"postgresDSN"`
	S3          S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"pathStyle"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CacheConfig struct {
	StaleAfter time.Duration `yaml:"staleAfter"`
}

type SeedConfig struct {
	Sample bool `yaml:"sample"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:  string(store.DriverFile),
			DataDir: "./data",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			StaleAfter: 5 * time.Minute,
		},
		Seed: SeedConfig{
			Sample: true,
		},
	}
}

// Load reads .env files (default ".env"; missing files are skipped), the
// optional YAML file and environment overrides.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Default()
	if path := os.Getenv(EnvPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setString("SERVER_HOST", &cfg.Server.Host)
	setString("STORE_DRIVER", &cfg.Store.Driver)
	setString("DATA_DIR", &cfg.Store.DataDir)
	setString("SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("POSTGRES_DSN", &cfg.Store.PostgresDSN)
	setString("S3_BUCKET", &cfg.Store.S3.Bucket)
	setString("S3_REGION", &cfg.Store.S3.Region)
	setString("S3_ENDPOINT", &cfg.Store.S3.Endpoint)
	setString("S3_PREFIX", &cfg.Store.S3.Prefix)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("SCHEMAS_PATH", &cfg.Schemas)

	if v := os.Getenv(EnvPrefix + "SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSERVER_PORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sS3_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Store.S3.PathStyle = b
	}
	if v := os.Getenv(EnvPrefix + "SEED_SAMPLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSEED_SAMPLE: %w", EnvPrefix, err)
		}
		cfg.Seed.Sample = b
	}
	if v := os.Getenv(EnvPrefix + "CACHE_STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sCACHE_STALE_AFTER: %w", EnvPrefix, err)
		}
		cfg.Cache.StaleAfter = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch store.Driver(c.Store.Driver) {
	case store.DriverFile, store.DriverSQLite, store.DriverPostgres, store.DriverS3, store.DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StoreOptions maps the store section onto store.Open options.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      store.Driver(c.Store.Driver),
		DataDir:     c.Store.DataDir,
		SQLitePath:  c.Store.SQLitePath,
		PostgresDSN: c.Store.PostgresDSN,
		S3: s3.Config{
			Bucket:    c.Store.S3.Bucket,
			Region:    c.Store.S3.Region,
			Endpoint:  c.Store.S3.Endpoint,
			Prefix:    c.Store.S3.Prefix,
			PathStyle: c.Store.S3.PathStyle,
		},
	}
}

// =============================================================================
// LOGGING
// =============================================================================

// ParseLogLevel accepts debug, info, warn (or warning) and error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the process logger from the log section.
func NewLogger(c LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLogLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
