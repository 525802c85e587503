// Package locationcache remembers which known location a free-text pickup
// phrase was resolved to, so the agent is not asked twice.
package locationcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache maps a normalized phrase to a location name.
type Cache interface {
	Get(ctx context.Context, phrase string) (string, bool, error)
	Set(ctx context.Context, phrase, location string) error
}

// Key normalizes a phrase: lower case, single spaces.
func Key(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

type memoryEntry struct {
	location string
	expires  time.Time
}

// MemoryCache is the in-process Cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, phrase string) (string, bool, error) {
	key := Key(phrase)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.location, true, nil
}

func (c *MemoryCache) Set(_ context.Context, phrase, location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(phrase)] = memoryEntry{location: location, expires: c.now().Add(c.ttl)}
	return nil
}
