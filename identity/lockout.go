package identity

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLockoutThreshold is the number of consecutive failures that
	// locks an account.
	DefaultLockoutThreshold = 7
	// DefaultLockoutDuration is how long a locked account stays locked.
	DefaultLockoutDuration = 5 * time.Minute
)

// LockoutConfig controls failure counting. Duration is both the lock length
// and the window over which failures are counted.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

func (c LockoutConfig) withDefaults() LockoutConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultLockoutThreshold
	}
	if c.Duration <= 0 {
		c.Duration = DefaultLockoutDuration
	}
	return c
}

// Lockout tracks consecutive failed logins per account.
type Lockout interface {
	IsLocked(ctx context.Context, userID string) (bool, error)
	// RecordFailure counts one failure and reports whether the account is
	// now locked.
	RecordFailure(ctx context.Context, userID string) (bool, error)
	Reset(ctx context.Context, userID string) error
}

type lockoutEntry struct {
	failures    int
	windowEnds  time.Time
	lockedUntil time.Time
}

// MemoryLockout keeps failure counters in process memory.
type MemoryLockout struct {
	mu      sync.Mutex
	config  LockoutConfig
	now     func() time.Time
	entries map[string]*lockoutEntry
}

// NewMemoryLockout creates a lockout. A nil now uses time.Now.
func NewMemoryLockout(cfg LockoutConfig, now func() time.Time) *MemoryLockout {
	if now == nil {
		now = time.Now
	}
	return &MemoryLockout{
		config:  cfg.withDefaults(),
		now:     now,
		entries: make(map[string]*lockoutEntry),
	}
}

func (l *MemoryLockout) IsLocked(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		return false, nil
	}
	now := l.now()
	if e.lockedUntil.After(now) {
		return true, nil
	}
	if !e.windowEnds.After(now) {
		delete(l.entries, userID)
	}
	return false, nil
}

func (l *MemoryLockout) RecordFailure(_ context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[userID]
	if !ok || !e.windowEnds.After(now) {
		e = &lockoutEntry{windowEnds: now.Add(l.config.Duration)}
		l.entries[userID] = e
	}

	e.failures++
	if e.failures < l.config.Threshold {
		return false, nil
	}

	e.failures = 0
	e.lockedUntil = now.Add(l.config.Duration)
	e.windowEnds = e.lockedUntil
	return true, nil
}

// Reset clears the failure counter. An active lock is left to expire.
func (l *MemoryLockout) Reset(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		return nil
	}
	if e.lockedUntil.After(l.now()) {
		e.failures = 0
		return nil
	}
	delete(l.entries, userID)
	return nil
}
