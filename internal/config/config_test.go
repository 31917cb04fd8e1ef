package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.LLM.CacheTTL != 10*time.Minute || cfg.LLM.CacheMaxSize != 100 {
		t.Errorf("llm cache defaults = %v/%d, want 10m/100", cfg.LLM.CacheTTL, cfg.LLM.CacheMaxSize)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  default_ttl: 30s
llm:
  model: local-model
  cache_max_size: 5
persistence:
  backend: redis
redis:
  addr: redis:6379
  invalidation: true
server:
  cors_origins: ["http://localhost:3000"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cache.DefaultTTL != 30*time.Second {
		t.Errorf("cache.default_ttl = %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Errorf("cache.max_size should keep default, got %d", cfg.Cache.MaxSize)
	}
	if cfg.LLM.Model != "local-model" || cfg.LLM.CacheMaxSize != 5 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.CacheTTL != 10*time.Minute {
		t.Errorf("llm.cache_ttl should keep default, got %v", cfg.LLM.CacheTTL)
	}
	if cfg.Persistence.Backend != "redis" || cfg.Redis.Addr != "redis:6379" || !cfg.Redis.Invalidation {
		t.Errorf("redis settings not loaded: %+v %+v", cfg.Persistence, cfg.Redis)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad yaml", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "cache: [")); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad duration", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "cache:\n  default_ttl: soon\n")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TTLCACHE_LLM_API_KEY", "sk-test")
	t.Setenv("TTLCACHE_LLM_CACHE_TTL", "90s")
	t.Setenv("TTLCACHE_CACHE_MAX_SIZE", "42")
	t.Setenv("TTLCACHE_REDIS_INVALIDATION", "true")
	t.Setenv("TTLCACHE_SERVER_CORS_ORIGINS", "http://a, http://b,")
	t.Setenv("TTLCACHE_TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("TTLCACHE_PERSISTENCE_BUFFER", "not-a-number")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.CacheTTL != 90*time.Second {
		t.Errorf("cache ttl = %v", cfg.LLM.CacheTTL)
	}
	if cfg.Cache.MaxSize != 42 {
		t.Errorf("max size = %d", cfg.Cache.MaxSize)
	}
	if !cfg.Redis.Invalidation {
		t.Error("invalidation not enabled")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("sample rate = %v", cfg.Tracing.SampleRate)
	}
	if cfg.Persistence.Buffer != 256 {
		t.Errorf("unparseable buffer should be ignored, got %d", cfg.Persistence.Buffer)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cache size", func(c *Config) { c.Cache.MaxSize = 0 }},
		{"zero llm cache size", func(c *Config) { c.LLM.CacheMaxSize = 0 }},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"unknown backend", func(c *Config) { c.Persistence.Backend = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Persistence.Backend = "postgres" }},
		{"redis without addr", func(c *Config) { c.Persistence.Backend = "redis"; c.Redis.Addr = "" }},
		{"unknown write policy", func(c *Config) { c.Persistence.WritePolicy = "around" }},
		{"write-back without buffer", func(c *Config) { c.Persistence.Buffer = 0 }},
		{"invalidation without redis", func(c *Config) { c.Redis.Invalidation = true; c.Redis.Addr = "" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}
