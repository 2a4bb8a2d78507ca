package state

import (
	"sync"
	"time"
)

// FeatureCache models the out-of-scope external feature store at its
// interface only (spec: "persistent feature storage, treated as a
// key/value cache with TTLs"). C2 and C3 depend only on this interface;
// swapping in a real backend never touches their logic.
type FeatureCache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

type cacheEntry struct {
	value    []byte
	expireAt time.Time
}

// InMemoryFeatureCache is the trivial default: a mutex-guarded map with
// lazy expiry on read. It is correct, not fast — a real deployment swaps
// in an external cache without the rest of the pipeline noticing.
type InMemoryFeatureCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewInMemoryFeatureCache constructs an empty cache.
func NewInMemoryFeatureCache() *InMemoryFeatureCache {
	return &InMemoryFeatureCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the value if present and not expired.
func (c *InMemoryFeatureCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expireAt.IsZero() && c.now().After(e.expireAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores value under key with an optional TTL (zero means no expiry).
func (c *InMemoryFeatureCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expireAt time.Time
	if ttl > 0 {
		expireAt = c.now().Add(ttl)
	}
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expireAt: expireAt}
}

// Delete removes key unconditionally.
func (c *InMemoryFeatureCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
