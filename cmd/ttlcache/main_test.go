package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/krisalay/ttl-cache/internal/config"
	"github.com/krisalay/ttl-cache/internal/metrics"
	"github.com/krisalay/ttl-cache/llm"
)

func TestRunDemo(t *testing.T) {
	runDemo(context.Background())
}

func TestRunBenchSmall(t *testing.T) {
	err := runBench(benchConfig{
		capacity:     50,
		preloadKeys:  100,
		goroutines:   4,
		opsPerG:      200,
		writePercent: 20,
		ttl:          time.Minute,
	})
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}
}

func TestBuildLLMStackWithoutStore(t *testing.T) {
	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer provider.Close()

	cfg := config.DefaultConfig()
	cfg.LLM.BaseURL = provider.URL
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.CacheMaxSize = 2

	pm := metrics.New("")
	stack, err := buildLLMStack(context.Background(), cfg, pm)
	if err != nil {
		t.Fatalf("buildLLMStack: %v", err)
	}
	defer stack.Close()

	if stack.Store != nil || stack.Redis != nil {
		t.Fatal("backend none should not open a store")
	}
	if stack.Cache.MaxSize() != 2 || stack.Cache.DefaultTTL() != cfg.LLM.CacheTTL {
		t.Errorf("cache limits = %d/%v", stack.Cache.MaxSize(), stack.Cache.DefaultTTL())
	}

	req := llm.Request{Messages: []llm.Message{{Role: "user", Content: "hi"}}}
	for i := 0; i < 3; i++ {
		c, err := stack.Service.Complete(context.Background(), req)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if c.Content != "ok" {
			t.Errorf("content = %q", c.Content)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", calls.Load())
	}
}

func TestNewWritePolicyKinds(t *testing.T) {
	cfg := config.DefaultConfig()
	if newWritePolicy(cfg, nil) != nil {
		t.Error("no store should mean no write policy")
	}
}

func TestBenchConfigWithCacheDefaults(t *testing.T) {
	cc := config.CacheConfig{DefaultTTL: 30 * time.Second, MaxSize: 64}
	base := benchConfig{capacity: 10, ttl: time.Second, goroutines: 2}

	t.Run("no flags set", func(t *testing.T) {
		got := base.withCacheDefaults(cc, func(string) bool { return false })
		if got.capacity != 64 || got.ttl != 30*time.Second {
			t.Errorf("got capacity=%d ttl=%v, want 64/30s", got.capacity, got.ttl)
		}
		if got.goroutines != 2 {
			t.Errorf("unrelated fields changed: %+v", got)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		got := base.withCacheDefaults(cc, func(string) bool { return true })
		if got.capacity != 10 || got.ttl != time.Second {
			t.Errorf("got capacity=%d ttl=%v, want flag values", got.capacity, got.ttl)
		}
	})
}

func TestBenchCommandReadsCacheSection(t *testing.T) {
	t.Cleanup(func() { configFile, logLevel, logFormat = "", "", "" })
	dir := t.TempDir()

	run := func(t *testing.T, name, yaml string) error {
		t.Helper()
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
			t.Fatal(err)
		}
		root := newRootCmd()
		root.SetArgs([]string{"bench", "--config", path, "--preload", "10", "--goroutines", "2", "--ops", "20"})
		return root.Execute()
	}

	t.Run("valid", func(t *testing.T) {
		if err := run(t, "valid", "cache:\n  max_size: 5\n  default_ttl: 1s\n"); err != nil {
			t.Fatalf("bench: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		err := run(t, "invalid", "cache:\n  max_size: 0\n")
		if !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("err = %v, want config.ErrInvalid", err)
		}
	})
}
