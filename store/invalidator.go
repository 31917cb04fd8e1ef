package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/krisalay/ttl-cache/internal/logging"
)

// InvalidationChannel is the Redis Pub/Sub channel carrying keys to drop.
const InvalidationChannel = "ttlcache:invalidate"

// Deleter is the slice of the cache API the invalidator needs.
type Deleter interface {
	Delete(key string)
}

// Invalidator keeps local caches of several instances consistent. Publish
// announces a deleted key; every instance running Start drops it locally.
type Invalidator struct {
	local   Deleter
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewInvalidator creates an invalidator for the given local cache.
func NewInvalidator(local Deleter, client *redis.Client, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = logging.Op()
	}
	return &Invalidator{
		local:   local,
		client:  client,
		channel: InvalidationChannel,
		logger:  logger,
	}
}

// Start listens for invalidation messages. It blocks until ctx is cancelled
// or Close is called.
func (inv *Invalidator) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	inv.mu.Lock()
	if inv.closed {
		inv.mu.Unlock()
		cancel()
		return nil
	}
	inv.cancel = cancel
	inv.mu.Unlock()
	defer cancel()

	pubsub := inv.client.Subscribe(subCtx, inv.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so publishes are not lost.
	if _, err := pubsub.Receive(subCtx); err != nil {
		if subCtx.Err() != nil {
			return nil
		}
		return err
	}
	inv.logger.Info("cache invalidation listener started", "channel", inv.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			inv.local.Delete(msg.Payload)
			inv.logger.Debug("cache key invalidated", "key", msg.Payload)
		}
	}
}

// Publish announces that key must be dropped by every listening instance.
func (inv *Invalidator) Publish(ctx context.Context, key string) error {
	return inv.client.Publish(ctx, inv.channel, key).Err()
}

// Close stops the listener.
func (inv *Invalidator) Close() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.closed {
		return nil
	}
	inv.closed = true
	if inv.cancel != nil {
		inv.cancel()
	}
	return nil
}
