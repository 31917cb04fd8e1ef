package writepolicy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/types"
)

// This file implements the "write-back" policy.

// writeReq represents one pending write operation that needs to be sent to the backing store.
type writeReq struct {
	ctx   context.Context
	key   string
	value []byte
	ttl   time.Duration
}

/*
WriteBackPolicy manages asynchronous writes to the backing store.
*/
type WriteBackPolicy struct {

	// store is the backing store (Redis, Postgres, ...)
	store types.Store

	// ch is a buffered channel that holds pending write requests.
	ch chan writeReq

	// wg is used to wait for the worker to finish during shutdown.
	wg sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	logger  *slog.Logger
}

// NewWriteBackPolicy creates a new write-back policy and starts its worker.
func NewWriteBackPolicy(store types.Store, buffer int, logger *slog.Logger) *WriteBackPolicy {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = logging.Op()
	}
	w := &WriteBackPolicy{
		store:  store,
		ch:     make(chan writeReq, buffer),
		logger: logger,
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// OnWrite queues the write and returns at once.
// If the queue is full, the write is DROPPED: blocking would make the caller pay for the store.
// The caller's cancellation does not apply to the queued write.
func (w *WriteBackPolicy) OnWrite(ctx context.Context, key string, value []byte, ttl time.Duration) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.ch <- writeReq{context.WithoutCancel(ctx), key, value, ttl}:
	default:
		w.dropped.Add(1)
		w.logger.Warn("write-back queue full, dropping write", "key", key)
	}
}

// Dropped returns how many writes were discarded because the queue was full.
func (w *WriteBackPolicy) Dropped() int64 {
	return w.dropped.Load()
}

/*
worker runs in the background and processes queued writes.
This is where eventual consistency happens.
*/
func (w *WriteBackPolicy) worker() {
	defer w.wg.Done()

	for req := range w.ch {
		if err := w.store.Set(req.ctx, req.key, req.value, req.ttl); err != nil {
			w.logger.Warn("write-back failed", "key", req.key, "error", err)
		}
	}
}

/*
Close shuts down the write-back policy gracefully.
------------------
1. Stop accepting writes and close the channel
2. Wait for the worker to drain what was already queued
*/
func (w *WriteBackPolicy) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
}
