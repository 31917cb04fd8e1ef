package engine

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/krisalay/ttl-cache/expiration"
	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/types"
)

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- What time it is
- When data is expired
- How cache events are recorded and logged

It does NOT:
- Store data
- Handle locking
- Decide eviction order
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered "too old".
	// If this is nil, entries never expire based on time.
	Expiration expiration.Strategy

	// Clock is the source of "now". Tests swap in clock.NewMock().
	Clock clock.Clock

	// Metrics is how we keep track of what the cache is doing.
	Metrics types.Metrics

	// Logger receives debug records for evictions, expirations and factory failures.
	Logger *slog.Logger
}

/*
NewCacheEngine creates a CacheEngine.
Nil collaborators are replaced with working defaults so the cache never has
to nil-check them on the hot path.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	clk clock.Clock,
	metrics types.Metrics,
	logger *slog.Logger,
) *CacheEngine {
	if clk == nil {
		clk = clock.New()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = logging.Op()
	}

	return &CacheEngine{
		Expiration: exp,
		Clock:      clk,
		Metrics:    metrics,
		Logger:     logger,
	}
}

// Now returns the current time according to the engine clock.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

/*
IsExpired checks whether an entry stored at storedAt with ttl is expired now.
Returns false if no expiration strategy is configured.
*/
func (e *CacheEngine) IsExpired(storedAt time.Time, ttl time.Duration) bool {
	return e.Expiration != nil &&
		e.Expiration.IsExpired(storedAt, ttl, e.Clock.Now())
}

// OnHit records a lookup that found a live entry.
func (e *CacheEngine) OnHit() {
	e.Metrics.Hit()
}

// OnMiss records a lookup that found nothing usable.
func (e *CacheEngine) OnMiss() {
	e.Metrics.Miss()
}

// OnExpire records the lazy removal of an expired entry.
func (e *CacheEngine) OnExpire(cache, key string, age time.Duration) {
	e.Metrics.Expire()
	e.Logger.Debug("cache entry expired", "cache", cache, "key", key, "age", age)
}

// OnEvict records a FIFO eviction made to stay within maxSize.
func (e *CacheEngine) OnEvict(cache, key string) {
	e.Metrics.Eviction()
	e.Logger.Debug("cache entry evicted", "cache", cache, "key", key)
}

// OnFactoryError records a failed GetOrSet factory. The error itself is
// returned to the caller by the cache.
func (e *CacheEngine) OnFactoryError(cache, key string, err error) {
	e.Metrics.FactoryError()
	e.Logger.Debug("cache factory failed", "cache", cache, "key", key, "error", err)
}
