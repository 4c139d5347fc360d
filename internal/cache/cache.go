// Package cache provides the revocation cache: a TTL key-value store
// used to fast-reject revoked tokens before the durable session record
// has converged. Losing its contents only widens the revocation
// propagation window; the durable store stays the source of truth.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a key-value store with per-entry TTL. Implementations need
// no durability guarantee.
type Cache interface {
	// Set stores value under key until ttl elapses. Non-positive TTLs
	// are dropped: the entry would already be expired.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Get returns the value for key if present and not expired.
	Get(ctx context.Context, key string) (string, bool)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on
// read.
type Memory struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		m:    make(map[string]entry),
		nowF: time.Now,
	}
}

// Set stores value under key until ttl elapses.
func (c *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry{value: value, expiresAt: c.nowF().Add(ttl)}
}

// Get returns the value for key if present and not expired.
func (c *Memory) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(c.nowF()) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}
