package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
)

// Config describes all runtime settings for the server.
//
// Loaded once in main, validated, and passed further via DI.
// Precedence: defaults < YAML file named by CONFIG_FILE < environment.
type Config struct {
	Env string `yaml:"env"` // dev|stage|prod

	Log struct {
		Format string `yaml:"format"` // text|json
		Level  string `yaml:"level"`
	} `yaml:"log"`

	HTTP struct {
		Addr              string        `yaml:"addr"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		IdleTimeout       time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`

	Auth struct {
		Secret   string        `yaml:"secret"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Snapshot struct {
		Backend  string        `yaml:"backend"`
		Interval time.Duration `yaml:"interval"`
		Dir      string        `yaml:"dir"`
	} `yaml:"snapshot"`

	Redis struct {
		Addr   string        `yaml:"addr"`
		DB     int           `yaml:"db"`
		Prefix string        `yaml:"prefix"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	S3 struct {
		Bucket         string `yaml:"bucket"`
		Prefix         string `yaml:"prefix"`
		Region         string `yaml:"region"`
		Endpoint       string `yaml:"endpoint"`
		ForcePathStyle bool   `yaml:"force_path_style"`
	} `yaml:"s3"`

	Scoreboard struct {
		DefaultID string `yaml:"default_id"`
	} `yaml:"scoreboard"`
}

func defaults() Config {
	var c Config
	c.Env = "dev"
	c.Log.Format = "text"
	c.Log.Level = "info"

	c.HTTP.Addr = ":3030"
	c.HTTP.ReadHeaderTimeout = 5 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.HTTP.MaxBodyBytes = 16 << 10

	c.Auth.TokenTTL = 24 * time.Hour

	c.Snapshot.Backend = BackendFile
	c.Snapshot.Interval = 15 * time.Minute
	c.Snapshot.Dir = "data"

	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = "parkour:"

	c.SQLite.Path = "data/leaderboard.db"
	c.S3.Region = "us-east-1"
	return c
}

func LoadFromEnv() (Config, error) {
	c := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	c.Env = envString("APP_ENV", c.Env)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)

	c.HTTP.Addr = envString("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", c.HTTP.ReadHeaderTimeout)
	c.HTTP.ReadTimeout = envDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = envDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = envDuration("HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)
	c.HTTP.MaxBodyBytes = int64(envInt("HTTP_MAX_BODY_BYTES", int(c.HTTP.MaxBodyBytes)))

	c.Auth.Secret = envString("PARKOUR_API_SECRET", c.Auth.Secret)
	c.Auth.TokenTTL = envDuration("TOKEN_TTL", c.Auth.TokenTTL)

	// the save timer is whole minutes; SNAPSHOT_INTERVAL takes any duration
	if m := envInt("PARKOUR_API_SAVE_TIMER", 0); m > 0 {
		c.Snapshot.Interval = time.Duration(m) * time.Minute
	}
	c.Snapshot.Interval = envDuration("SNAPSHOT_INTERVAL", c.Snapshot.Interval)
	c.Snapshot.Backend = strings.ToLower(envString("SNAPSHOT_BACKEND", c.Snapshot.Backend))
	c.Snapshot.Dir = envString("DATA_DIR", c.Snapshot.Dir)

	c.Redis.Addr = envString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = envInt("REDIS_DB", c.Redis.DB)
	c.Redis.Prefix = envString("REDIS_PREFIX", c.Redis.Prefix)
	c.Redis.TTL = envDuration("REDIS_TTL", c.Redis.TTL)

	c.Postgres.URL = envString("DATABASE_URL", c.Postgres.URL)
	c.SQLite.Path = envString("SQLITE_PATH", c.SQLite.Path)

	c.S3.Bucket = envString("S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = envString("S3_PREFIX", c.S3.Prefix)
	c.S3.Region = envString("S3_REGION", c.S3.Region)
	c.S3.Endpoint = envString("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.ForcePathStyle = envBool("S3_FORCE_PATH_STYLE", c.S3.ForcePathStyle)

	c.Scoreboard.DefaultID = envString("SCOREBOARD_DEFAULT_ID", c.Scoreboard.DefaultID)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse yaml %q: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive, got %d", c.HTTP.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("PARKOUR_API_SECRET is empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.Snapshot.Interval <= 0 {
		return errors.New("snapshot interval must be positive")
	}
	switch c.Snapshot.Backend {
	case BackendFile:
		if c.Snapshot.Dir == "" {
			return errors.New("DATA_DIR is empty")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is empty")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("DATABASE_URL is empty")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("SQLITE_PATH is empty")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET is empty")
		}
	default:
		return fmt.Errorf("unsupported SNAPSHOT_BACKEND=%q (want file|redis|postgres|sqlite|s3)", c.Snapshot.Backend)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("unsupported LOG_LEVEL=%q: %w", c.Log.Level, err)
	}
	return l, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
