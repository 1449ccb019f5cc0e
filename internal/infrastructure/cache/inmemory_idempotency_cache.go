package cache

import (
	"context"
	"sync"
	"time"

	"github.com/stockledger/backend/internal/domain/shared"
)

// entry represents a cached payload with expiration
type entry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryIdempotencyCache implements shared.IdempotencyCache using an in-memory map.
// This is suitable for single-instance deployments and testing
type InMemoryIdempotencyCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyCache creates a new in-memory idempotency cache.
// It starts a background goroutine to clean up expired entries
func NewInMemoryIdempotencyCache() *InMemoryIdempotencyCache {
	c := &InMemoryIdempotencyCache{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns the payload stored under key unless it has expired
func (c *InMemoryIdempotencyCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true, nil
}

// Put stores payload under key for ttl
func (c *InMemoryIdempotencyCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times
func (c *InMemoryIdempotencyCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *InMemoryIdempotencyCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries from the cache
func (c *InMemoryIdempotencyCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *InMemoryIdempotencyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure InMemoryIdempotencyCache implements IdempotencyCache
var _ shared.IdempotencyCache = (*InMemoryIdempotencyCache)(nil)
