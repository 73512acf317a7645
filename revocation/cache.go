package revocation

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultSweepInterval is how often expired entries are evicted.
	DefaultSweepInterval = time.Minute
	// DefaultShards is the number of independently locked partitions.
	DefaultShards = 32
)

// Config controls cache partitioning and the background sweep.
type Config struct {
	// Shards is rounded up to a power of two. Zero means DefaultShards.
	Shards int
	// SweepInterval zero means DefaultSweepInterval.
	SweepInterval time.Duration
	// Now overrides the clock used for recording and evicting entries.
	Now func() time.Time
	// OnSweep, when set, is called after every sweep with the number of
	// evicted entries. It runs on the sweeper goroutine.
	OnSweep func(removed int)
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// Cache records explicitly revoked tokens until their natural expiry.
//
// Reads and writes lock a single shard. The sweeper started by New visits
// one shard at a time, so it never holds more than one lock.
type Cache struct {
	shards   []*shard
	mask     uint64
	interval time.Duration
	now      func() time.Time
	onSweep  func(int)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a cache and starts its sweeper. Call Close to stop it.
func New(cfg Config) *Cache {
	n := cfg.Shards
	if n <= 0 {
		n = DefaultShards
	}
	n = nextPowerOfTwo(n)

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Cache{
		shards:   make([]*shard, n),
		mask:     uint64(n - 1),
		interval: interval,
		now:      now,
		onSweep:  cfg.OnSweep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]time.Time)}
	}

	go c.run()
	return c
}

func (c *Cache) shardFor(token string) *shard {
	return c.shards[xxhash.Sum64String(token)&c.mask]
}

// Invalidate records token as revoked until now+remaining. The first
// recorded expiry wins; it reports whether this call inserted the entry.
func (c *Cache) Invalidate(token string, remaining time.Duration) bool {
	expiresAt := c.now().UTC().Add(remaining)
	s := c.shardFor(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[token]; exists {
		return false
	}
	s.entries[token] = expiresAt
	return true
}

// IsInvalid reports whether token is currently recorded. A false result
// only means the token is not known to be revoked.
func (c *Cache) IsInvalid(token string) bool {
	s := c.shardFor(token)

	s.mu.RLock()
	_, ok := s.entries[token]
	s.mu.RUnlock()
	return ok
}

// ExpiresAt returns the recorded natural expiry of a revoked token.
func (c *Cache) ExpiresAt(token string) (time.Time, bool) {
	s := c.shardFor(token)

	s.mu.RLock()
	at, ok := s.entries[token]
	s.mu.RUnlock()
	return at, ok
}

// Len returns the number of recorded entries.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Sweep evicts every entry whose expiry is at or before now and returns
// how many were removed.
func (c *Cache) Sweep() int {
	now := c.now().UTC()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for token, expiresAt := range s.entries {
			if !expiresAt.After(now) {
				delete(s.entries, token)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (c *Cache) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := c.Sweep()
			if c.onSweep != nil {
				c.onSweep(removed)
			}
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper and waits for it to exit. Entries stay readable.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
