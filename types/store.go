package types

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when a key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the contract between the cache layer and a shared backing store
// (Redis, Postgres, ...). Values are opaque bytes; encoding is left to the caller.
type Store interface {

	/*
		Get is called when the in-process cache misses and the caller wants to
		check whether another process already computed the value.
		Returns ErrNotFound when the key is absent or expired.
	*/
	Get(ctx context.Context, key string) ([]byte, error)

	/*
		Set is called by write policies to persist a freshly computed value.

		- Write-through: called synchronously
		- Write-back: called later from a background worker

		A zero TTL means the value does not expire in the store.
	*/
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}
