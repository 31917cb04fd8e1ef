package api

import (
	"context"
	"time"

	"github.com/krisalay/ttl-cache/types"
)

/*
Cache defines the PUBLIC API of our in-memory TTL cache.
This is a contract that guarantees certain behaviors, without exposing internals.
Details like (expiration, eviction order, locking, metrics) are hidden behind this interface.
*/
type Cache[T any] interface {

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. If the key exists and is NOT expired:
		   - Return the value and true (cache hit)
		   - Nothing else changes: no TTL refresh, no reordering

		2. If the key exists but IS expired:
		   - Remove it (lazy expiration)
		   - Return the zero value and false

		3. If the key does not exist:
		   - Return the zero value and false
	*/
	Get(key string) (T, bool)

	/*
		Set stores a key-value pair using the cache's default TTL.

		BEHAVIOR:
		---------
		- If the cache is full and the key is new, evicts exactly one entry:
		  the oldest inserted one (FIFO), whether or not it is still live
		- Overwriting an existing key replaces value, timestamp and TTL,
		  keeps its insertion position and never triggers eviction
	*/
	Set(key string, value T)

	// SetWithTTL is Set with an explicit time-to-live for this entry only.
	SetWithTTL(key string, value T, ttl time.Duration)

	// Has reports whether Get would hit. It has the same lazy-expiration side effect.
	Has(key string) bool

	/*
		Delete removes a key from the cache immediately.

		This operation is idempotent:
		- Removing a non-existing key is safe
	*/
	Delete(key string)

	// Clear removes every entry.
	Clear()

	/*
		Size returns how many entries are physically stored.

		IMPORTANT:
		----------
		Expired entries that nobody has looked up yet are still counted.
	*/
	Size() int

	/*
		GetOrSet returns the cached value for key, computing it on a miss.

		BEHAVIOR:
		---------
		1. Hit: return the cached value, factory is NOT called
		2. Miss: call factory(ctx), store the result with the default TTL, return it
		3. Factory error: return the same error, store nothing

		CONCURRENCY:
		------------
		The cache lock is NOT held while the factory runs. Two callers missing
		on the same key at the same time both run the factory and the last
		one to finish wins. There is no single-flight deduplication.
	*/
	GetOrSet(ctx context.Context, key string, factory types.Factory[T]) (T, error)

	// GetOrSetWithTTL is GetOrSet with an explicit TTL for the stored result.
	GetOrSetWithTTL(ctx context.Context, key string, factory types.Factory[T], ttl time.Duration) (T, error)
}

// Inspector is the read-only view the admin surface needs on top of Cache.
type Inspector interface {
	Size() int
	MaxSize() int
	DefaultTTL() time.Duration
	Keys() []string
}
