package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxAttempts = 20
	DefaultWindow      = time.Minute
	DefaultPrefix      = "ali"
)

// Config holds limiter tuning parameters. Zero fields take the defaults.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// Limiter throttles failed login attempts per client address using Redis
// fixed-window counters, so that the budget is shared across instances.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{redis: redisClient, config: cfg}
}

func (l *Limiter) key(ip string) string {
	return l.config.Prefix + ":" + ip
}

// Check returns ErrRateLimited when ip has used up its failure budget for
// the current window. An empty ip is never limited.
func (l *Limiter) Check(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Fail records one failed attempt for ip.
func (l *Limiter) Fail(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(ip)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(ip), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the counter for ip after a successful login.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
