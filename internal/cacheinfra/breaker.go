package cacheinfra

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/goliatone/go-customer-listing/pkg/logging"
)

// BreakerConfig controls the circuit breaker guarding redis reads and fills.
type BreakerConfig struct {
	// MaxFailures consecutive errors open the breaker. Default: 5
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before retrying redis. Default: 30s
	OpenTimeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

func newBreaker(name string, cfg BreakerConfig, logger logging.Logger) *gobreaker.CircuitBreaker[any] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a miss is a healthy answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}
