package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRedisRepository(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisRepository(rdb, ""), mr
}

// repositories returns every backend that can run without external services.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	redisRepo, _ := newRedisRepository(t)
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"redis":  redisRepo,
	}
}

func TestCreateAndFindByValue(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(repo, Config{})

			tok, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if tok.Value == "" || tok.ID == "" || tok.UserID != "user-1" {
				t.Fatalf("unexpected token: %+v", tok)
			}
			if got := tok.ExpiresAt.Sub(tok.CreatedAt); got != DefaultTTL {
				t.Fatalf("expected 7 day lifetime, got %v", got)
			}

			found, ok, err := store.FindByValue(ctx, tok.Value)
			if err != nil || !ok {
				t.Fatalf("FindByValue: ok=%v err=%v", ok, err)
			}
			if found.ID != tok.ID || found.UserID != tok.UserID || !found.ExpiresAt.Equal(tok.ExpiresAt) {
				t.Fatalf("found %+v, want %+v", found, tok)
			}

			_, ok, err = store.FindByValue(ctx, "unknown")
			if err != nil || ok {
				t.Fatalf("expected unknown value to miss, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(repo, Config{})

			r1, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			r2, err := store.Rotate(ctx, r1.Value)
			if err != nil {
				t.Fatalf("first rotate failed: %v", err)
			}
			if r2.Value == r1.Value || r2.ID == r1.ID || r2.UserID != "user-1" {
				t.Fatalf("rotation did not issue a fresh token: r1=%+v r2=%+v", r1, r2)
			}

			if _, ok, _ := store.FindByValue(ctx, r1.Value); ok {
				t.Fatal("expected old value to be gone after rotation")
			}
			if _, err := store.Rotate(ctx, r1.Value); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected replay to fail with ErrInvalidRefreshToken, got %v", err)
			}
			if _, ok, _ := store.FindByValue(ctx, r2.Value); !ok {
				t.Fatal("expected replacement to survive a rejected replay")
			}
		})
	}
}

func TestRotateRejectsUnknownAndEmptyValues(t *testing.T) {
	store := NewStore(NewMemoryRepository(), Config{})
	for _, value := range []string{"", "never-issued"} {
		if _, err := store.Rotate(context.Background(), value); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("Rotate(%q): expected ErrInvalidRefreshToken, got %v", value, err)
		}
	}
}

func TestConcurrentRotateYieldsExactlyOneToken(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(repo, Config{})

			tok, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			const workers = 16
			var (
				wg        sync.WaitGroup
				successes atomic.Int64
				rejected  atomic.Int64
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := store.Rotate(ctx, tok.Value)
					switch {
					case err == nil:
						successes.Add(1)
					case errors.Is(err, ErrInvalidRefreshToken):
						rejected.Add(1)
					default:
						t.Errorf("unexpected rotate error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if successes.Load() != 1 || rejected.Load() != workers-1 {
				t.Fatalf("expected exactly one rotation, got %d successes and %d rejections",
					successes.Load(), rejected.Load())
			}
		})
	}
}

func TestInvalidateByID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(repo, Config{})

			tok, err := store.Create(ctx, "user-1")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if err := store.Invalidate(ctx, tok.ID); err != nil {
				t.Fatalf("Invalidate failed: %v", err)
			}
			if _, ok, _ := store.FindByValue(ctx, tok.Value); ok {
				t.Fatal("expected invalidated token to be gone")
			}
			if err := store.Invalidate(ctx, tok.ID); err != nil {
				t.Fatalf("expected second Invalidate to be a no-op, got %v", err)
			}
			if err := store.Invalidate(ctx, "missing"); err != nil {
				t.Fatalf("expected unknown id to be ignored, got %v", err)
			}
		})
	}
}

func TestInvalidateUser(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(repo, Config{})

			a1, _ := store.Create(ctx, "alice")
			a2, _ := store.Create(ctx, "alice")
			b1, _ := store.Create(ctx, "bob")

			n, err := store.InvalidateUser(ctx, "alice")
			if err != nil {
				t.Fatalf("InvalidateUser failed: %v", err)
			}
			if n != 2 {
				t.Fatalf("expected 2 tokens removed, got %d", n)
			}
			for _, tok := range []Token{a1, a2} {
				if _, ok, _ := store.FindByValue(ctx, tok.Value); ok {
					t.Fatalf("expected %s removed", tok.ID)
				}
			}
			if _, ok, _ := store.FindByValue(ctx, b1.Value); !ok {
				t.Fatal("expected other user's token untouched")
			}
		})
	}
}

func TestExpiredTokensAreInvisibleAndPurged(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemoryRepository()
	store := NewStore(repo, Config{TTL: time.Hour, Now: clock.Now})

	old, _ := store.Create(ctx, "user-1")
	clock.Advance(30 * time.Minute)
	fresh, _ := store.Create(ctx, "user-1")
	clock.Advance(30 * time.Minute)

	if _, ok, err := store.FindByValue(ctx, old.Value); ok || err != nil {
		t.Fatalf("expected token at its expiry to be invisible, ok=%v err=%v", ok, err)
	}
	if _, err := store.Rotate(ctx, old.Value); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired rotate to fail, got %v", err)
	}
	if _, ok, _ := store.FindByValue(ctx, fresh.Value); !ok {
		t.Fatal("expected younger token still valid")
	}

	if _, err := store.Create(ctx, "user-2"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	n, err := store.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 2 || repo.Len() != 0 {
		t.Fatalf("expected 2 purged and empty repository, purged %d left %d", n, repo.Len())
	}
}

func TestCreateRequiresUser(t *testing.T) {
	store := NewStore(NewMemoryRepository(), Config{})
	if _, err := store.Create(context.Background(), ""); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestRedisRepositoryStoresHashNotValue(t *testing.T) {
	repo, mr := newRedisRepository(t)
	store := NewStore(repo, Config{})

	tok, err := store.Create(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, key := range mr.Keys() {
		if containsValue(mr, key, tok.Value) {
			t.Fatalf("plaintext refresh value found under key %s", key)
		}
	}
	if !mr.Exists("{art}:h:" + HashValue(tok.Value)) {
		t.Fatal("expected record keyed by value hash")
	}
	if ttl := mr.TTL("{art}:h:" + HashValue(tok.Value)); ttl <= 0 {
		t.Fatalf("expected record to carry a TTL, got %v", ttl)
	}
	if got, _ := mr.Get("{art}:i:" + tok.ID); got != HashValue(tok.Value) {
		t.Fatalf("expected id index to point at hash, got %q", got)
	}
}

func TestRedisRepositoryIgnoresClockSkew(t *testing.T) {
	repo, mr := newRedisRepository(t)
	clock := &fakeClock{now: time.Now().Add(-30 * 24 * time.Hour)}
	store := NewStore(repo, Config{TTL: time.Hour, Now: clock.Now})
	ctx := context.Background()

	tok, err := store.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ttl := mr.TTL("{art}:h:" + HashValue(tok.Value)); ttl != time.Hour {
		t.Fatalf("expected one hour TTL, got %v", ttl)
	}
	if _, ok, err := store.FindByValue(ctx, tok.Value); !ok || err != nil {
		t.Fatalf("expected token visible despite skewed clock, ok=%v err=%v", ok, err)
	}

	mr.FastForward(time.Hour)
	if mr.Exists("{art}:h:"+HashValue(tok.Value)) || mr.Exists("{art}:i:"+tok.ID) {
		t.Fatal("expected keys evicted after the token lifetime")
	}
}

func TestRedisKeysShareOneHashSlot(t *testing.T) {
	repo, mr := newRedisRepository(t)
	store := NewStore(repo, Config{})

	if _, err := store.Create(context.Background(), "user-1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 3 {
		t.Fatalf("expected record and two indexes, got %v", keys)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, "{art}:") {
			t.Fatalf("key %s is outside the {art} hash tag", key)
		}
	}
}

func TestRedisRepositoryUnavailable(t *testing.T) {
	repo, mr := newRedisRepository(t)
	store := NewStore(repo, Config{})
	mr.Close()

	if _, err := store.Create(context.Background(), "user-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on Create, got %v", err)
	}
	if _, err := store.Rotate(context.Background(), "value"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on Rotate, got %v", err)
	}
}

func containsValue(mr *miniredis.Miniredis, key, value string) bool {
	if key == value {
		return true
	}
	if s, err := mr.Get(key); err == nil {
		return s == value
	}
	fields, _ := mr.HKeys(key)
	for _, field := range fields {
		if mr.HGet(key, field) == value {
			return true
		}
	}
	return false
}
