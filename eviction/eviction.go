package eviction

/*
This file defines how the cache decides what to remove when it runs out of space.
*/

/*
Policy is the interface that all eviction strategies must follow.

The cache does NOT care how eviction works internally.
It only calls these methods, always while holding its own lock, so
implementations do not need to be safe for concurrent use.
*/
type Policy interface {

	// OnGet is called whenever a key is read from the cache.
	// FIFO ignores this.
	OnGet(string)

	// OnPut is called whenever a key is written to the cache.
	// Re-writing a tracked key must not change its position.
	OnPut(string)

	// Remove is called when a key is explicitly removed
	// from the cache (delete or lazy expiration), not evicted.
	Remove(string)

	// Evict is called when the cache is FULL and needs space.
	// It forgets the chosen key and returns it; the cache then removes it from storage.
	// ok is false when nothing is tracked.
	Evict() (key string, ok bool)

	// Reset forgets every key.
	Reset()

	// Keys returns the tracked keys in eviction order, next victim first.
	Keys() []string

	// Len returns how many keys are tracked.
	Len() int
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// FIFO (First In First Out): Evicts the oldest inserted key, regardless of access.
	FIFO PolicyType = "FIFO"
)

// NewEvictionPolicy is a small factory function.
// Given a PolicyType, it creates the correct eviction policy.
func NewEvictionPolicy(t PolicyType) Policy {
	switch t {
	case FIFO:
		return newFIFO()
	default:
		panic("unknown eviction policy: " + string(t))
	}
}
