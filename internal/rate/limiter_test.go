package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.Fail(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Fail failed: %v", err)
		}
	}

	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("expected other address unaffected, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})

	if err := l.Fail(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if ttl := mr.TTL("ali:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("expected window TTL, got %v", ttl)
	}
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxAttempts: 1})

	_ = l.Fail(ctx, "10.0.0.1")
	if err := l.Reset(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := l.Check(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected reset counter, got %v", err)
	}
}

func TestLimiterIgnoresEmptyAddress(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxAttempts: 1})

	for i := 0; i < 3; i++ {
		_ = l.Fail(ctx, "")
	}
	if err := l.Check(ctx, ""); err != nil {
		t.Fatalf("expected empty address never limited, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{})
	mr.Close()

	if err := l.Check(context.Background(), "10.0.0.1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
