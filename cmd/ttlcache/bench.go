package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/ttl-cache"
	"github.com/krisalay/ttl-cache/internal/config"
	"github.com/krisalay/ttl-cache/internal/logging"
)

type benchConfig struct {
	capacity     int
	preloadKeys  int
	goroutines   int
	opsPerG      int
	writePercent int
	ttl          time.Duration
}

func benchCmd() *cobra.Command {
	cfg := benchConfig{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a concurrent load benchmark against one cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = cfg.withCacheDefaults(appCfg.Cache, cmd.Flags().Changed)
			if cfg.capacity < 1 || cfg.goroutines < 1 {
				return fmt.Errorf("capacity and goroutines must be at least 1")
			}
			if cfg.writePercent < 0 || cfg.writePercent > 100 {
				return fmt.Errorf("write-percent must be within [0, 100]")
			}
			return runBench(cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.capacity, "capacity", 0, "Max entries (defaults to cache.max_size)")
	cmd.Flags().IntVar(&cfg.preloadKeys, "preload", 100000, "Keys inserted before the run")
	cmd.Flags().IntVar(&cfg.goroutines, "goroutines", 200, "Concurrent workers")
	cmd.Flags().IntVar(&cfg.opsPerG, "ops", 5000, "Operations per worker")
	cmd.Flags().IntVar(&cfg.writePercent, "write-percent", 10, "Share of operations that are Set")
	cmd.Flags().DurationVar(&cfg.ttl, "ttl", 0, "Default TTL (defaults to cache.default_ttl)")
	return cmd
}

// withCacheDefaults fills capacity and ttl from the cache config section
// unless the flag was set on the command line.
func (b benchConfig) withCacheDefaults(cc config.CacheConfig, changed func(string) bool) benchConfig {
	if !changed("capacity") {
		b.capacity = cc.MaxSize
	}
	if !changed("ttl") {
		b.ttl = cc.DefaultTTL
	}
	return b
}

func runBench(cfg benchConfig) error {
	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")

	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Capacity     :", cfg.capacity)
	fmt.Println("Preload Keys :", cfg.preloadKeys)
	fmt.Println("Goroutines   :", cfg.goroutines)
	fmt.Println("Ops/Goroutine:", cfg.opsPerG)
	fmt.Println("Write %      :", cfg.writePercent)
	fmt.Println("TTL          :", cfg.ttl)
	fmt.Println("---------------------------------")

	metrics := &counterMetrics{}
	c := cache.New[int](
		cfg.ttl,
		cfg.capacity,
		cache.WithName("bench"),
		cache.WithMetrics(metrics),
		cache.WithLogger(logging.Discard()),
	)

	keySpace := cfg.preloadKeys
	if keySpace < 1 {
		keySpace = 1
	}

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < cfg.preloadKeys; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}
	fmt.Println("Preload complete.")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	var g errgroup.Group
	for i := 0; i < cfg.goroutines; i++ {
		id := i
		g.Go(func() error {
			for j := 0; j < cfg.opsPerG; j++ {
				key := fmt.Sprintf("key-%d", (id*cfg.opsPerG+j)%keySpace)
				if j%100 < cfg.writePercent {
					c.Set(key, j)
				} else {
					c.Get(key)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	duration := time.Since(start)
	totalOps := cfg.goroutines * cfg.opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Final Size       : %d\n", c.Size())
	fmt.Println("=========================================")

	metrics.Print()
	return nil
}
