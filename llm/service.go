package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krisalay/ttl-cache/api"
	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/internal/metrics"
	"github.com/krisalay/ttl-cache/internal/observability"
	"github.com/krisalay/ttl-cache/types"
	"github.com/krisalay/ttl-cache/writepolicy"
)

// DurationObserver records how long Complete took and where the answer came from.
type DurationObserver interface {
	ObserveLLMRequest(model, source string, d time.Duration)
}

// Service memoizes provider completions.
type Service struct {
	cache        api.Cache[Completion]
	provider     Provider
	defaultModel string

	store    types.Store
	writes   writepolicy.WritePolicy
	storeTTL time.Duration

	observer DurationObserver
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore enables read-through from a shared store. Without WithWritePolicy,
// fresh completions are written through synchronously.
func WithStore(s types.Store) ServiceOption {
	return func(svc *Service) { svc.store = s }
}

// WithWritePolicy sets how fresh completions reach the shared store.
func WithWritePolicy(w writepolicy.WritePolicy) ServiceOption {
	return func(svc *Service) { svc.writes = w }
}

// WithStoreTTL sets the TTL of values written to the shared store. Zero means
// the in-process cache's default TTL.
func WithStoreTTL(ttl time.Duration) ServiceOption {
	return func(svc *Service) { svc.storeTTL = ttl }
}

// WithDefaultModel fills Request.Model when the caller leaves it empty.
func WithDefaultModel(model string) ServiceOption {
	return func(svc *Service) { svc.defaultModel = model }
}

// WithObserver records request durations.
func WithObserver(o DurationObserver) ServiceOption {
	return func(svc *Service) { svc.observer = o }
}

// WithServiceLogger sets the logger. Defaults to the operational logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = l }
}

// NewService wires a memo cache to a provider. The cache is usually NewCache().
func NewService(c api.Cache[Completion], p Provider, opts ...ServiceOption) *Service {
	svc := &Service{cache: c, provider: p}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = logging.Op()
	}
	if svc.store != nil && svc.writes == nil {
		svc.writes = writepolicy.NewWriteThroughPolicy(svc.store, svc.logger)
	}
	return svc
}

// Complete returns the memoized completion for req, asking the store and then
// the provider on a miss. Provider errors are returned as-is and nothing is cached.
func (s *Service) Complete(ctx context.Context, req Request) (Completion, error) {
	req = s.withDefaults(req)
	key := Key(req)

	ctx, span := observability.StartSpan(ctx, "llm.complete",
		observability.AttrCacheName.String(CacheName),
		observability.AttrCacheKey.String(key),
		observability.AttrModel.String(req.Model),
	)
	defer span.End()

	start := time.Now()
	source := metrics.SourceCache

	completion, err := s.cache.GetOrSet(ctx, key, func(ctx context.Context) (Completion, error) {
		c, src, err := s.load(ctx, key, req)
		source = src
		return c, err
	})
	if err != nil {
		source = metrics.SourceError
	}

	span.SetAttributes(observability.AttrSource.String(source))
	if s.observer != nil {
		s.observer.ObserveLLMRequest(req.Model, source, time.Since(start))
	}
	if err != nil {
		observability.SetSpanError(span, err)
		return Completion{}, err
	}
	observability.SetSpanOK(span)
	return completion, nil
}

// KeyFor returns the cache key Complete uses for req.
func (s *Service) KeyFor(req Request) string {
	return Key(s.withDefaults(req))
}

func (s *Service) withDefaults(req Request) Request {
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	return req
}

// load runs on a cache miss.
func (s *Service) load(ctx context.Context, key string, req Request) (Completion, string, error) {
	if s.store != nil {
		if c, ok := s.readStore(ctx, key); ok {
			return c, metrics.SourceStore, nil
		}
	}

	c, err := s.provider.Complete(ctx, req)
	if err != nil {
		return Completion{}, metrics.SourceProvider, err
	}

	if s.writes != nil {
		data, err := json.Marshal(c)
		if err != nil {
			s.logger.Warn("encode completion", "key", key, "error", err)
		} else {
			s.writes.OnWrite(ctx, key, data, s.writeTTL())
		}
	}
	return c, metrics.SourceProvider, nil
}

func (s *Service) readStore(ctx context.Context, key string) (Completion, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.logger.Warn("shared store read failed", "key", key, "error", err)
		}
		return Completion{}, false
	}
	var c Completion
	if err := json.Unmarshal(data, &c); err != nil {
		s.logger.Warn("discarding undecodable stored completion", "key", key, "error", err)
		return Completion{}, false
	}
	return c, true
}

func (s *Service) writeTTL() time.Duration {
	if s.storeTTL > 0 {
		return s.storeTTL
	}
	if inspector, ok := s.cache.(api.Inspector); ok {
		return inspector.DefaultTTL()
	}
	return DefaultCacheTTL
}

// Forget drops key from the in-process cache and the shared store.
func (s *Service) Forget(ctx context.Context, key string) error {
	s.cache.Delete(key)
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %q from store: %w", key, err)
	}
	return nil
}

// Close flushes the write policy.
func (s *Service) Close() {
	if s.writes != nil {
		s.writes.Close()
	}
}
