package expiration

import "time"

/*
ExpireAfterWrite implements "fixed TTL" expiration. The clock starts when the
entry is written and is never reset by reads. The entry expires once strictly
more than TTL has elapsed, so an entry read exactly at storedAt+ttl is still live.
*/
type ExpireAfterWrite struct{}

// IsExpired checks whether the entry is expired at this moment.
func (ExpireAfterWrite) IsExpired(storedAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(storedAt) > ttl
}
