// Package checksumcache implements a TTL-bounded in-memory digest cache: a
// concurrent-safe path -> algorithm -> digest map with a background sweeper
// that evicts entries older than a configured lifetime.
package checksumcache

import (
	"sync"
	"time"

	"github.com/lgulliver/vaultmvn/internal/checksum"
	"github.com/rs/zerolog/log"
)

type digestRecord struct {
	value         string
	lastRefreshed time.Time
}

// entry holds every algorithm's digest for one path. Its own mutex lets the
// sweeper evict stale algorithms for one path without blocking foreground
// operations on any other path.
type entry struct {
	mu      sync.Mutex
	digests map[checksum.Algorithm]digestRecord
}

// Cache is a process-wide, TTL-bounded cache of artifact digests. Zero value
// is not usable; construct with New.
type Cache struct {
	lifetime time.Duration
	interval time.Duration

	entries sync.Map // string -> *entry

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	now func() time.Time
}

// New creates a Cache with the given record lifetime and sweeper interval.
// The caller is expected to supply the configured values.
func New(lifetime, interval time.Duration) *Cache {
	return &Cache{
		lifetime: lifetime,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the background sweeper. Safe to call once per Cache.
func (c *Cache) Start() {
	go c.sweepLoop()
}

// Stop halts the background sweeper and waits for it to exit.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
}

func (c *Cache) sweepLoop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep evicts expired digest records, holding at most one entry's mutex at
// a time so foreground get/put/invalidate calls on other paths never block
// for longer than a single entry's eviction.
func (c *Cache) sweep() {
	now := c.now()
	evicted := 0
	c.entries.Range(func(key, value interface{}) bool {
		path := key.(string)
		e := value.(*entry)

		e.mu.Lock()
		for alg, rec := range e.digests {
			if now.Sub(rec.lastRefreshed) > c.lifetime {
				delete(e.digests, alg)
				evicted++
			}
		}
		empty := len(e.digests) == 0
		e.mu.Unlock()

		if empty {
			c.entries.Delete(path)
		}
		return true
	})

	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("checksum cache sweep evicted expired records")
	}
}

// Get returns a digest only if present and not expired.
func (c *Cache) Get(path string, alg checksum.Algorithm) (string, bool) {
	v, ok := c.entries.Load(path)
	if !ok {
		return "", false
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.digests[alg]
	if !ok {
		return "", false
	}
	if c.now().Sub(rec.lastRefreshed) > c.lifetime {
		delete(e.digests, alg)
		return "", false
	}
	return rec.value, true
}

// Put refreshes the digest and lastRefreshed timestamp for path/alg.
func (c *Cache) Put(path string, alg checksum.Algorithm, digest string) {
	v, _ := c.entries.LoadOrStore(path, &entry{digests: make(map[checksum.Algorithm]digestRecord)})
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.digests[alg] = digestRecord{value: digest, lastRefreshed: c.now()}
}

// Invalidate removes all algorithms cached for path.
func (c *Cache) Invalidate(path string) {
	c.entries.Delete(path)
}
