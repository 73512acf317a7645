package identity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLockout keeps failure counters in Redis so that every instance sees
// the same lock state.
//
// Keys: "alo:<user>" counts failures and expires one Duration after the
// first failure; "alk:<user>" exists while the account is locked.
type RedisLockout struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

func NewRedisLockout(client redis.UniversalClient, cfg LockoutConfig) *RedisLockout {
	return &RedisLockout{redis: client, config: cfg.withDefaults()}
}

func (l *RedisLockout) counterKey(userID string) string { return "alo:" + userID }
func (l *RedisLockout) lockKey(userID string) string    { return "alk:" + userID }

func (l *RedisLockout) IsLocked(ctx context.Context, userID string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.lockKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

func (l *RedisLockout) RecordFailure(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	count, err := l.redis.Incr(ctx, l.counterKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.counterKey(userID), l.config.Duration).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count < int64(l.config.Threshold) {
		return false, nil
	}

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.lockKey(userID), count, l.config.Duration)
		pipe.Del(ctx, l.counterKey(userID))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// Reset clears the failure counter. An active lock is left to expire.
func (l *RedisLockout) Reset(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.counterKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
