// ABOUTME: Thread-safe TTL cache of seen nonces for exact-replay rejection
// ABOUTME: Bounded in size with O(1) eviction via an insertion-ordered list

package sign

import (
	"container/list"
	"sync"
	"time"
)

// nonceEntry stores the timestamp and list element for a cached nonce key.
type nonceEntry struct {
	seenAt  time.Time
	element *list.Element
}

// NonceCache tracks (publicID, nonce) keys observed inside the replay
// window. The TTL should match the protocol's allowed delta: a nonce older
// than the window is already rejected by the timestamp check, so keeping it
// longer buys nothing.
type NonceCache struct {
	mu      sync.Mutex
	seen    map[string]*nonceEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewNonceCache creates a cache with the given TTL and maximum size.
// A background goroutine periodically removes expired entries.
func NewNonceCache(ttl time.Duration, maxSize int) *NonceCache {
	c := &NonceCache{
		seen:    make(map[string]*nonceEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// CheckAndMark atomically checks whether key was already seen inside the TTL
// and marks it if not. Returns true for a replay, false for a fresh nonce
// that is now recorded. The check and mark are one critical section so two
// concurrent requests with the same nonce cannot both pass.
func (c *NonceCache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && time.Since(entry.seenAt) < c.ttl {
		return true
	}

	c.markLocked(key)
	return false
}

// markLocked records key. Must be called with mu held.
func (c *NonceCache) markLocked(key string) {
	now := time.Now()

	if entry, exists := c.seen[key]; exists {
		entry.seenAt = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &nonceEntry{seenAt: now, element: elem}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *NonceCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup periodically removes expired entries until Close is called.
func (c *NonceCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *NonceCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.seenAt) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *NonceCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
