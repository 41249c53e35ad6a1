// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-customer-listing/cache"
	"github.com/goliatone/go-customer-listing/pkg/logging"
	"github.com/goliatone/go-customer-listing/store"
)

// Config is the full service configuration.
type Config struct {
	HTTP  HTTPConfig
	DB    store.Config
	Cache cache.Config
	Log   LogConfig
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string
	// BaseURL prefixes Location headers, e.g. http://localhost:8080.
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig selects the logger.
type LogConfig struct {
	Driver string
	Level  string
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		DB:    store.DefaultConfig(),
		Cache: cache.DefaultConfig(),
		Log: LogConfig{
			Driver: logging.DriverLogrus,
			Level:  "info",
		},
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads variables through getenv, applies defaults and validates the result.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()
	env := reader{getenv: getenv}

	cfg.HTTP.Addr = env.str("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.BaseURL = strings.TrimRight(env.str("BASE_URL", cfg.HTTP.BaseURL), "/")
	cfg.HTTP.ReadTimeout = env.duration("HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = env.duration("HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.HTTP.IdleTimeout = env.duration("HTTP_IDLE_TIMEOUT", cfg.HTTP.IdleTimeout)
	cfg.HTTP.RequestTimeout = env.duration("HTTP_REQUEST_TIMEOUT", cfg.HTTP.RequestTimeout)
	cfg.HTTP.ShutdownTimeout = env.duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.DB.Driver = env.str("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = env.str("DB_DSN", cfg.DB.DSN)
	cfg.DB.LogQueries = env.boolean("DB_LOG_QUERIES", cfg.DB.LogQueries)

	cfg.Cache.Backend = env.str("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = env.duration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Capacity = env.integer("CACHE_CAPACITY", cfg.Cache.Capacity)
	if url := env.str("REDIS_URL", ""); url != "" || cfg.Cache.Backend == cache.BackendRedis {
		cfg.Cache.Redis = &cache.RedisConfig{
			URL:         url,
			KeyPrefix:   env.str("REDIS_KEY_PREFIX", "customers:"),
			MaxFailures: uint32(env.integer("REDIS_BREAKER_MAX_FAILURES", 5)),
			OpenTimeout: env.duration("REDIS_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		}
	}

	cfg.Log.Driver = env.str("LOG_DRIVER", cfg.Log.Driver)
	cfg.Log.Level = env.str("LOG_LEVEL", cfg.Log.Level)

	if err := env.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.HTTP,
		validation.Field(&c.HTTP.Addr, validation.Required),
		validation.Field(&c.HTTP.BaseURL, validation.Required),
		validation.Field(&c.HTTP.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.HTTP.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.HTTP.RequestTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.HTTP.ShutdownTimeout, validation.Required),
	); err != nil {
		return fmt.Errorf("config: http: %w", err)
	}

	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Driver, validation.Required, validation.In(logging.DriverLogrus, logging.DriverZap, logging.DriverNop)),
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "warning", "error")),
	); err != nil {
		return fmt.Errorf("config: log: %w", err)
	}

	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("config: db: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("config: cache: %w", err)
	}
	return nil
}

// reader collects parse errors so Load reports every bad variable at once.
type reader struct {
	getenv func(string) string
	errs   []string
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return b
}

func (r *reader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: invalid environment: %s", strings.Join(r.errs, "; "))
}
