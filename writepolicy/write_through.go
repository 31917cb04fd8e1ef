package writepolicy

import (
	"context"
	"log/slog"
	"time"

	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/types"
)

/*
This file implements the "write-through" policy.

Whenever a value is computed, it is immediately written to the backing store.

So the flow is: compute → store write (synchronous) → return to caller
*/
type WriteThroughPolicy struct {

	// store is the backing store where data must be persisted immediately.
	store types.Store

	logger *slog.Logger
}

/*
NewWriteThroughPolicy creates a new write-through policy.
*/
func NewWriteThroughPolicy(store types.Store, logger *slog.Logger) *WriteThroughPolicy {
	if logger == nil {
		logger = logging.Op()
	}
	return &WriteThroughPolicy{store: store, logger: logger}
}

/*
OnWrite writes the value to the backing store before returning.
  - If the backing store is slow, the caller is slow
*/
func (w *WriteThroughPolicy) OnWrite(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := w.store.Set(ctx, key, value, ttl); err != nil {
		w.logger.Warn("write-through failed", "key", key, "error", err)
	}
}

// Close has nothing to release.
func (w *WriteThroughPolicy) Close() {}
