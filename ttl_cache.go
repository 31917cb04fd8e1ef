package cache

import (
	"context"
	"sync"
	"time"

	"github.com/krisalay/ttl-cache/api"
	"github.com/krisalay/ttl-cache/engine"
	evict "github.com/krisalay/ttl-cache/eviction"
	"github.com/krisalay/ttl-cache/types"
)

var (
	_ api.Cache[any] = (*TTLCache[any])(nil)
	_ api.Inspector  = (*TTLCache[any])(nil)
)

/*
TTLCache is the main cache implementation.
This struct is the orchestrator that connects:
- storage (a plain map guarded by one mutex)
- eviction (FIFO insertion order)
- expiration (lazy, checked on read)
- metrics and logging (through the engine)
*/
type TTLCache[T any] struct {
	// name identifies the cache in logs and metrics.
	name string

	// mu guards entries and eviction. It is never held while a factory runs.
	mu sync.Mutex

	// entries holds the actual key → entry data.
	entries map[string]*types.Entry[T]

	// eviction tracks insertion order and picks the victim when the cache is full.
	eviction evict.Policy

	// engine contains the "rules" of the cache: clock, expiration, metrics, logging.
	engine *engine.CacheEngine

	// defaultTTL is applied by Set and GetOrSet.
	defaultTTL time.Duration

	// maxSize is the hard cap on stored entries.
	maxSize int
}

// New creates a TTLCache. It panics if maxSize is less than 1 or if
// WithExpiration was given a nil strategy.
func New[T any](defaultTTL time.Duration, maxSize int, opts ...Option) *TTLCache[T] {
	if maxSize < 1 {
		panic("cache: maxSize must be at least 1")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.expiration == nil {
		panic("cache: expiration strategy must not be nil")
	}

	return &TTLCache[T]{
		name:       o.name,
		entries:    make(map[string]*types.Entry[T], maxSize),
		eviction:   evict.NewEvictionPolicy(evict.FIFO),
		engine:     engine.NewCacheEngine(o.expiration, o.clock, o.metrics, o.logger),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}
}

/*
Get retrieves a value from the cache.
*/
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *TTLCache[T]) getLocked(key string) (T, bool) {
	var zero T

	ent, ok := c.entries[key]
	if !ok {
		c.engine.OnMiss()
		return zero, false
	}

	// Expired entries are never returned, even if nothing purged them yet.
	if c.engine.IsExpired(ent.StoredAt, ent.TTL) {
		c.removeLocked(key)
		c.engine.OnExpire(c.name, key, ent.Age(c.engine.Now()))
		c.engine.OnMiss()
		return zero, false
	}

	c.engine.OnHit()
	c.eviction.OnGet(key)
	return ent.Value, true
}

/*
Set stores a value with the default TTL.
*/
func (c *TTLCache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

/*
SetWithTTL stores a value with an explicit TTL.
*/
func (c *TTLCache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Only a new key can push the cache over its cap.
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		if victim, ok := c.eviction.Evict(); ok {
			delete(c.entries, victim)
			c.engine.OnEvict(c.name, victim)
		}
	}

	c.entries[key] = &types.Entry[T]{
		Key:      key,
		Value:    value,
		StoredAt: c.engine.Now(),
		TTL:      ttl,
	}
	c.eviction.OnPut(key)
}

// Has reports whether key holds a live entry.
func (c *TTLCache[T]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

/*
Delete removes a key from the cache immediately.
*/
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *TTLCache[T]) removeLocked(key string) {
	delete(c.entries, key)
	c.eviction.Remove(key)
}

// Clear removes every entry.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.eviction.Reset()
}

// Size returns the number of stored entries, stale ones included.
func (c *TTLCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

/*
GetOrSet returns the cached value or computes, stores and returns it.
*/
func (c *TTLCache[T]) GetOrSet(ctx context.Context, key string, factory types.Factory[T]) (T, error) {
	return c.GetOrSetWithTTL(ctx, key, factory, c.defaultTTL)
}

/*
GetOrSetWithTTL is GetOrSet with an explicit TTL for the stored result.

The lock is released between the lookup and the store, so concurrent misses
on one key each run the factory. Last write wins.
*/
func (c *TTLCache[T]) GetOrSetWithTTL(
	ctx context.Context,
	key string,
	factory types.Factory[T],
	ttl time.Duration,
) (T, error) {

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := factory(ctx)
	if err != nil {
		c.engine.OnFactoryError(c.name, key, err)
		var zero T
		return zero, err
	}

	c.SetWithTTL(key, v, ttl)
	return v, nil
}

// Name returns the name the cache reports in logs and metrics.
func (c *TTLCache[T]) Name() string { return c.name }

// DefaultTTL returns the TTL applied by Set and GetOrSet.
func (c *TTLCache[T]) DefaultTTL() time.Duration { return c.defaultTTL }

// MaxSize returns the entry cap.
func (c *TTLCache[T]) MaxSize() int { return c.maxSize }

// Keys returns the stored keys in insertion order, oldest first.
// Stale entries are included, like in Size.
func (c *TTLCache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Keys()
}
