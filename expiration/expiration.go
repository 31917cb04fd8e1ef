// This file defines how cache entries expire over time.

package expiration

import "time"

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

A strategy only answers a question. It never mutates the entry: reads must not
push expiry forward.
*/
type Strategy interface {

	// IsExpired reports whether an entry stored at storedAt with the given ttl
	// must be treated as absent at now.
	IsExpired(storedAt time.Time, ttl time.Duration, now time.Time) bool
}
