package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// Entry represents a cached value with optional expiration
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cache is an in-memory key-value store with optional TTL.
// It satisfies domain.KVStore for tests and ephemeral runs.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Entry
}

// New creates a new cache
func New() *Cache {
	return &Cache{items: map[string]*Entry{}}
}

// SetTTL stores a value with a TTL; zero means no expiry
func (c *Cache) SetTTL(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &Entry{Value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	c.items[key] = entry
}

// Lookup retrieves a value if present and not expired
func (c *Cache) Lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.items[key]
	if !exists || entry.expired(time.Now()) {
		return nil, false
	}
	return append([]byte(nil), entry.Value...), true
}

// Get implements domain.KVStore
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.Lookup(key)
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return v, nil
}

// Set implements domain.KVStore
func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	c.SetTTL(key, value, 0)
	return nil
}

// Delete implements domain.KVStore
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Ping implements domain.KVStore
func (c *Cache) Ping(context.Context) error { return nil }

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string]*Entry{}
}

// Invalidate removes all items matching a prefix
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}
