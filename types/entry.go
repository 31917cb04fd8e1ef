package types

import "time"

// Entry is one cached value together with the moment it was stored and
// the TTL it was stored with. Entries are replaced, never mutated, once
// they are visible in the cache.
type Entry[T any] struct {
	Key      string
	Value    T
	StoredAt time.Time
	TTL      time.Duration
}

// Age returns how long ago the entry was stored, relative to now.
func (e *Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}
