package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker in front of Redis.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used by the service.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// Redis stores entries with SET EX. While Redis is failing the breaker
// opens and calls fail fast with gobreaker.ErrOpenState.
type Redis struct {
	rdb     redis.Cmdable
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewRedis wraps rdb with a circuit breaker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRedis(rdb redis.Cmdable, cfg BreakerConfig, logger zerolog.Logger) *Redis {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	log := logger.With().Str("component", "cache").Logger()

	settings := gobreaker.Settings{
		Name:        "redis-result-cache",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller giving up says nothing about Redis health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrMiss) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache breaker state changed")
		},
	}
	return &Redis{rdb: rdb, breaker: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

// Get returns the value stored under key, ErrMiss when absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	return r.breaker.Execute(func() ([]byte, error) {
		b, err := r.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		if err != nil {
			return nil, fmt.Errorf("redis GET %s: %w", key, err)
		}
		return b, nil
	})
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, fmt.Errorf("redis SET %s: %w", key, err)
		}
		return nil, nil
	})
	return err
}

// State reports the breaker state.
func (r *Redis) State() gobreaker.State {
	return r.breaker.State()
}
