package cache

import (
	"time"

	"github.com/goliatone/go-customer-listing/internal/cacheinfra"
	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// Supported cache backends.
const (
	BackendMemory = cacheinfra.BackendMemory
	BackendRedis  = cacheinfra.BackendRedis
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend              string
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration
	Redis                *RedisConfig
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// RedisConfig configures the redis backend. Only used when Backend is BackendRedis.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	// MaxFailures consecutive redis errors open the circuit breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing redis again.
	OpenTimeout time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the cache service for the configured backend.
// A nil logger disables cache logging.
func NewCacheService(cfg Config, logger logging.Logger) (TagAwareCacheService, error) {
	return cacheinfra.New(cfg.toInternal(), logger)
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	var redis *cacheinfra.RedisConfig
	if c.Redis != nil {
		redis = &cacheinfra.RedisConfig{
			URL:       c.Redis.URL,
			KeyPrefix: c.Redis.KeyPrefix,
			Breaker: cacheinfra.BreakerConfig{
				MaxFailures: c.Redis.MaxFailures,
				OpenTimeout: c.Redis.OpenTimeout,
			},
		}
	}

	return cacheinfra.Config{
		Backend:              c.Backend,
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
		Redis:                redis,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	var redis *RedisConfig
	if cfg.Redis != nil {
		redis = &RedisConfig{
			URL:         cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			MaxFailures: cfg.Redis.Breaker.MaxFailures,
			OpenTimeout: cfg.Redis.Breaker.OpenTimeout,
		}
	}

	return Config{
		Backend:              cfg.Backend,
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
		Redis:                redis,
	}
}
