package circuitbreaker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisWrapper wraps a Redis client with a circuit breaker. Cache misses
// (redis.Nil) are not counted as failures.
type RedisWrapper struct {
	client  *redis.Client
	cb      *CircuitBreaker
	name    string
	service string
	logger  *zap.Logger
}

// NewRedisWrapper creates a new Redis wrapper with circuit breaker protection
func NewRedisWrapper(client *redis.Client, name, service string, logger *zap.Logger) *RedisWrapper {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	cb := NewCircuitBreaker(name, redisConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(name, service, cb)
	return &RedisWrapper{client: client, cb: cb, name: name, service: service, logger: logger}
}

func (rw *RedisWrapper) execute(ctx context.Context, fn func() error) error {
	err := rw.cb.Execute(ctx, func() error {
		if e := fn(); e != nil && e != redis.Nil {
			return e
		}
		return nil
	})
	state := rw.cb.State()
	GlobalMetricsCollector.RecordRequest(rw.name, rw.service, state, err == nil)
	return err
}

// Ping checks Redis connectivity through the circuit breaker
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.execute(ctx, func() error {
		return rw.client.Ping(ctx).Err()
	})
}

// Get retrieves a value. A missing key returns redis.Nil without tripping the breaker.
func (rw *RedisWrapper) Get(ctx context.Context, key string) (string, error) {
	var result string
	var resultErr error
	err := rw.execute(ctx, func() error {
		result, resultErr = rw.client.Get(ctx, key).Result()
		return resultErr
	})
	if err != nil {
		return "", err
	}
	return result, resultErr
}

// Set stores a value with expiration through the circuit breaker
func (rw *RedisWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return rw.execute(ctx, func() error {
		return rw.client.Set(ctx, key, value, expiration).Err()
	})
}

// Del removes keys through the circuit breaker
func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) error {
	return rw.execute(ctx, func() error {
		return rw.client.Del(ctx, keys...).Err()
	})
}

// Keys lists keys matching a pattern through the circuit breaker
func (rw *RedisWrapper) Keys(ctx context.Context, pattern string) ([]string, error) {
	var result []string
	err := rw.execute(ctx, func() error {
		var e error
		result, e = rw.client.Keys(ctx, pattern).Result()
		return e
	})
	return result, err
}

// Close closes the underlying Redis client
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// GetClient exposes the underlying client for operations not covered by the wrapper
func (rw *RedisWrapper) GetClient() *redis.Client {
	return rw.client
}

// IsCircuitBreakerOpen returns true if the circuit breaker is open
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.State() == StateOpen
}
