// Package cache stores resolved cover descriptors and makes sure only one
// resolution per key is in flight at a time.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lehigh-university-libraries/bookcovers/internal/metrics"
	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

const (
	DefaultCapacity       = 500
	DefaultComputeTimeout = 2 * time.Minute
)

// ComputeFunc resolves the descriptor for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (models.ImageDescriptor, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int    `json:"size"`
	InFlight  int    `json:"in_flight"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Shared    uint64 `json:"shared"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a bounded FIFO cache with in-flight deduplication.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is oldest
	inflight map[string]uint64
	stamp    uint64

	capacity int
	timeout  time.Duration
	group    singleflight.Group

	hits, misses, waited, evictions uint64

	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithComputeTimeout bounds how long one computation may run.
func WithComputeTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a cache holding at most capacity entries.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]uint64),
		capacity: capacity,
		timeout:  DefaultComputeTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the cached descriptor for key, joins a computation already
// in flight for it, or starts one. The computation is detached from ctx: a
// caller whose ctx ends gets ctx.Err() while the computation carries on for
// the remaining waiters and still populates the cache.
func (c *Cache) Resolve(ctx context.Context, key string, compute ComputeFunc) (models.ImageDescriptor, error) {
	if d, ok := c.lookup(key); ok {
		return d, nil
	}

	c.mu.Lock()
	c.waited++
	c.mu.Unlock()

	// started stays false for callers that joined another caller's flight
	started := false
	ch := c.group.DoChan(key, func() (interface{}, error) {
		started = true
		return c.run(ctx, key, compute)
	})

	select {
	case <-ctx.Done():
		return models.ImageDescriptor{}, ctx.Err()
	case res := <-ch:
		if !started {
			metrics.CacheLookups.WithLabelValues("shared").Inc()
		}
		if res.Err != nil {
			return models.ImageDescriptor{}, res.Err
		}
		return res.Val.(models.ImageDescriptor), nil
	}
}

func (c *Cache) lookup(key string) (models.ImageDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.hits++
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return el.Value.(models.CacheEntry).Descriptor, true
	}
	return models.ImageDescriptor{}, false
}

func (c *Cache) run(ctx context.Context, key string, compute ComputeFunc) (models.ImageDescriptor, error) {
	c.mu.Lock()
	// A flight that finished between our lookup and DoChan may have stored it
	if el, ok := c.entries[key]; ok {
		c.mu.Unlock()
		metrics.CacheLookups.WithLabelValues("shared").Inc()
		return el.Value.(models.CacheEntry).Descriptor, nil
	}
	c.stamp++
	stamp := c.stamp
	c.inflight[key] = stamp
	c.misses++
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	metrics.CacheInFlight.Set(float64(len(c.inflight)))
	c.mu.Unlock()

	computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	d, err := compute(computeCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Invalidate or Clear while computing drops the marker; such a result is
	// returned to its waiters but never stored.
	if c.inflight[key] == stamp {
		delete(c.inflight, key)
		if err == nil {
			c.store(key, d)
		}
	}
	metrics.CacheInFlight.Set(float64(len(c.inflight)))
	return d, err
}

// store must be called with c.mu held.
func (c *Cache) store(key string, d models.ImageDescriptor) {
	entry := models.CacheEntry{Key: key, Descriptor: d, CreatedAt: c.now()}
	if el, ok := c.entries[key]; ok {
		el.Value = entry
		return
	}
	c.entries[key] = c.order.PushBack(entry)

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(models.CacheEntry).Key)
		c.evictions++
		metrics.CacheEvictions.Inc()
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Get returns the cached entry for key without starting a computation.
func (c *Cache) Get(key string) (models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return models.CacheEntry{}, false
	}
	return el.Value.(models.CacheEntry), true
}

// Invalidate removes key and its in-flight marker. It reports whether
// anything was removed.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, flying := c.inflight[key]
	el, cached := c.entries[key]
	if cached {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	delete(c.inflight, key)
	c.group.Forget(key)

	metrics.CacheEntries.Set(float64(len(c.entries)))
	metrics.CacheInFlight.Set(float64(len(c.inflight)))
	return cached || flying
}

// Clear removes every entry and in-flight marker.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.inflight {
		c.group.Forget(key)
	}
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.inflight = make(map[string]uint64)

	metrics.CacheEntries.Set(0)
	metrics.CacheInFlight.Set(0)
}

// Stats returns a snapshot of the cache counters. Shared counts callers that
// were served by another caller's computation.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shared uint64
	if c.waited > c.misses {
		shared = c.waited - c.misses
	}
	return Stats{
		Size:      len(c.entries),
		InFlight:  len(c.inflight),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Shared:    shared,
		Evictions: c.evictions,
	}
}
