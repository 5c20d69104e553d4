package respcache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache bounded by a maximum entry count.
// When full, the entry closest to expiry is evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
	now        Clock
}

// NewMemoryCache returns a memory cache holding at most maxEntries entries.
// A nil clock uses time.Now.
func NewMemoryCache(maxEntries int, now Clock) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		now:        now,
	}
}

// Get retrieves an entry. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Set stores entry for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 || entry == nil {
		return nil
	}
	now := c.now()
	stored := *entry
	stored.StoredAt = now
	stored.ExpiresAt = now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = &stored
	return nil
}

// evictLocked drops expired entries, then the soonest-expiring one if still full.
func (c *MemoryCache) evictLocked(now time.Time) {
	var victim string
	var victimExp time.Time
	for k, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, k)
			continue
		}
		if victim == "" || e.ExpiresAt.Before(victimExp) {
			victim, victimExp = k, e.ExpiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && victim != "" {
		delete(c.entries, victim)
	}
}

// Delete removes an entry. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Cache = (*MemoryCache)(nil)
