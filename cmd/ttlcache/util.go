package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/ttl-cache"
	"github.com/krisalay/ttl-cache/internal/config"
	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/internal/metrics"
	"github.com/krisalay/ttl-cache/llm"
	"github.com/krisalay/ttl-cache/store"
	"github.com/krisalay/ttl-cache/types"
	"github.com/krisalay/ttl-cache/writepolicy"
)

// loadConfig applies, in order: defaults, --config file, TTLCACHE_* env, flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.InitStructured(cfg.Log.Format, cfg.Log.Level)
	return cfg, nil
}

// openStore connects the configured shared store. The redis client is
// returned separately so the invalidator can reuse it; it is nil for the
// other backends.
func openStore(ctx context.Context, cfg *config.Config) (types.Store, *redis.Client, error) {
	switch cfg.Persistence.Backend {
	case "redis":
		rs := store.NewRedisStore(store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return rs, rs.Client(), nil
	case "postgres":
		ps, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return ps, nil, nil
	default:
		return nil, nil, nil
	}
}

func newWritePolicy(cfg *config.Config, s types.Store) writepolicy.WritePolicy {
	if s == nil {
		return nil
	}
	if writepolicy.Kind(cfg.Persistence.WritePolicy) == writepolicy.Back {
		return writepolicy.NewWriteBackPolicy(s, cfg.Persistence.Buffer, logging.Op())
	}
	return writepolicy.NewWriteThroughPolicy(s, logging.Op())
}

// llmStack is everything a command needs to answer completions.
type llmStack struct {
	Cache   *cache.TTLCache[llm.Completion]
	Service *llm.Service
	Store   types.Store
	Redis   *redis.Client

	closeOnce sync.Once
}

// buildLLMStack wires the memo cache, the provider and the optional store.
// pm may be nil.
func buildLLMStack(ctx context.Context, cfg *config.Config, pm *metrics.PrometheusMetrics) (*llmStack, error) {
	cacheOpts := []cache.Option{cache.WithLogger(logging.Op())}
	if pm != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics(pm.ForCache(llm.CacheName)))
	}
	c := llm.NewCacheWithLimits(cfg.LLM.CacheTTL, cfg.LLM.CacheMaxSize, cacheOpts...)

	s, rdb, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider := llm.NewOpenAIProvider(llm.ProviderConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	svcOpts := []llm.ServiceOption{
		llm.WithDefaultModel(cfg.LLM.Model),
		llm.WithServiceLogger(logging.Op()),
	}
	if s != nil {
		svcOpts = append(svcOpts,
			llm.WithStore(s),
			llm.WithWritePolicy(newWritePolicy(cfg, s)),
			llm.WithStoreTTL(cfg.Persistence.TTL),
		)
	}
	if pm != nil {
		svcOpts = append(svcOpts, llm.WithObserver(pm))
	}

	return &llmStack{
		Cache:   c,
		Service: llm.NewService(c, provider, svcOpts...),
		Store:   s,
		Redis:   rdb,
	}, nil
}

// Close flushes pending writes, then closes the store.
func (st *llmStack) Close() {
	st.closeOnce.Do(func() {
		st.Service.Close()
		if st.Store != nil {
			if err := st.Store.Close(); err != nil {
				logging.Op().Warn("close store", "error", err)
			}
		}
	})
}
