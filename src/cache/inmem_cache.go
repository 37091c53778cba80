package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// InmemCache is an in-memory Cache. Expired entries are dropped lazily on
// read, by Purge, and by the optional purge ticker.
type InmemCache struct {
	l       sync.RWMutex
	clock   clock.Clock
	entries map[string]entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewInmemCache creates an InmemCache reading time from clk. A nil clk uses
// the wall clock. If purgeInterval is positive, expired entries are also
// purged on that interval until Close is called.
func NewInmemCache(clk clock.Clock, purgeInterval time.Duration) *InmemCache {
	if clk == nil {
		clk = clock.New()
	}

	c := &InmemCache{
		clock:   clk,
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
	}

	if purgeInterval > 0 {
		go c.purgeLoop(purgeInterval)
	}

	return c
}

func (c *InmemCache) purgeLoop(interval time.Duration) {
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stopCh:
			return
		}
	}
}

// Get implements the Cache interface.
func (c *InmemCache) Get(key string) ([]byte, bool) {
	c.l.RLock()
	e, ok := c.entries[key]
	c.l.RUnlock()

	if !ok {
		return nil, false
	}

	if !c.clock.Now().Before(e.expiresAt) {
		c.l.Lock()
		// it may have been overwritten in the meantime
		if cur, ok := c.entries[key]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.l.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set implements the Cache interface.
func (c *InmemCache) Set(key string, value []byte, ttl time.Duration) error {
	c.l.Lock()
	defer c.l.Unlock()

	if ttl <= 0 {
		delete(c.entries, key)
		return nil
	}

	cp := make([]byte, len(value))
	copy(cp, value)

	c.entries[key] = entry{
		value:     cp,
		expiresAt: c.clock.Now().Add(ttl),
	}

	return nil
}

// Purge implements the Cache interface.
func (c *InmemCache) Purge() {
	c.l.Lock()
	defer c.l.Unlock()

	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of entries held, expired or not.
func (c *InmemCache) Len() int {
	c.l.RLock()
	defer c.l.RUnlock()
	return len(c.entries)
}

// Close stops the purge ticker.
func (c *InmemCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}
