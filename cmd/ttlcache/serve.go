package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/ttl-cache/internal/config"
	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/internal/metrics"
	"github.com/krisalay/ttl-cache/internal/observability"
	"github.com/krisalay/ttl-cache/internal/server"
	"github.com/krisalay/ttl-cache/store"
)

const purgeInterval = 5 * time.Minute

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin and completion HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := logging.Op()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(context.Background())

	pm := metrics.New(metrics.DefaultNamespace)

	stack, err := buildLLMStack(ctx, cfg, pm)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := pm.RegisterCacheSize(stack.Cache.Name(), func() float64 {
		return float64(stack.Cache.Size())
	}); err != nil {
		return err
	}

	srv := &server.Server{
		Cache:   stack.Cache,
		LLM:     stack.Service,
		Metrics: pm.Handler(),
		Logger:  logger,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Redis.Invalidation {
		rdb := stack.Redis
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
		}
		inv := store.NewInvalidator(stack.Cache, rdb, logger)
		defer inv.Close()
		srv.Invalidator = inv
		g.Go(func() error {
			if err := inv.Start(gctx); err != nil {
				return fmt.Errorf("invalidation listener: %w", err)
			}
			return nil
		})
	}

	if ps, ok := stack.Store.(*store.PostgresStore); ok {
		g.Go(func() error {
			purgeLoop(gctx, ps, purgeInterval)
			return nil
		})
	}

	r := mux.NewRouter()
	r.Use(server.RequestID())
	r.Use(server.RequestLogger(logger))
	srv.SetupRoutes(r)

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost" + cfg.Server.Addr}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", server.RequestIDHeader},
	})

	httpServer := &http.Server{
		Handler:      corsHandler.Handler(r),
		Addr:         cfg.Server.Addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 10*time.Second,
	}

	g.Go(func() error {
		logger.Info("starting ttlcache server",
			"addr", cfg.Server.Addr,
			"backend", cfg.Persistence.Backend,
			"write_policy", cfg.Persistence.WritePolicy,
			"invalidation", cfg.Redis.Invalidation,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// purger deletes expired rows from a durable store.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func purgeLoop(ctx context.Context, ps purger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ps.PurgeExpired(ctx)
			if err != nil {
				logging.Op().Warn("purge expired completions", "error", err)
				continue
			}
			if n > 0 {
				logging.Op().Debug("purged expired completions", "count", n)
			}
		}
	}
}
