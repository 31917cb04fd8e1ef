package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when a lookup finds a live entry.
	Hit()

	// Miss is called when a lookup finds nothing, or finds an expired entry.
	Miss()

	// Eviction is called when the oldest entry is dropped to make room for a new key.
	Eviction()

	// Expire is called when a lookup discovers an entry past its TTL and removes it.
	Expire()

	// FactoryError is called when a GetOrSet factory fails.
	FactoryError()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

We don't want to force every user of the cache to implement metrics,
so the engine falls back to this when none is configured.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()          {}
func (NoopMetrics) Miss()         {}
func (NoopMetrics) Eviction()     {}
func (NoopMetrics) Expire()       {}
func (NoopMetrics) FactoryError() {}
