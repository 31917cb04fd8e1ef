// Package config loads daemon and CLI settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// CacheConfig sizes general-purpose caches built by the CLI.
type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxSize    int           `yaml:"max_size"`
}

// LLMConfig holds the OpenAI-compatible provider and its memo cache.
type LLMConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheMaxSize int           `yaml:"cache_max_size"`
}

// PersistenceConfig selects where memoized responses are shared.
type PersistenceConfig struct {
	Backend     string        `yaml:"backend"`      // none, redis, postgres
	WritePolicy string        `yaml:"write_policy"` // through, back
	Buffer      int           `yaml:"buffer"`
	TTL         time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	KeyPrefix    string `yaml:"key_prefix"`
	Invalidation bool   `yaml:"invalidation"`
}

// PostgresConfig holds the connection string for the durable store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig holds the admin HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
	ServiceName string  `yaml:"service_name"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			DefaultTTL: 5 * time.Minute,
			MaxSize:    1000,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			Timeout:      60 * time.Second,
			CacheTTL:     10 * time.Minute,
			CacheMaxSize: 100,
		},
		Persistence: PersistenceConfig{
			Backend:     "none",
			WritePolicy: "back",
			Buffer:      256,
			TTL:         time.Hour,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ttlcache:",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			SampleRate:  1.0,
			ServiceName: "ttlcache",
		},
	}
}

// Load reads a YAML file over DefaultConfig. Keys missing from the file keep
// their defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
// Values that do not parse are skipped.
func LoadFromEnv(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setDuration("TTLCACHE_CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL)
	setInt("TTLCACHE_CACHE_MAX_SIZE", &cfg.Cache.MaxSize)

	setString("TTLCACHE_LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("TTLCACHE_LLM_API_KEY", &cfg.LLM.APIKey)
	setString("TTLCACHE_LLM_MODEL", &cfg.LLM.Model)
	setDuration("TTLCACHE_LLM_TIMEOUT", &cfg.LLM.Timeout)
	setDuration("TTLCACHE_LLM_CACHE_TTL", &cfg.LLM.CacheTTL)
	setInt("TTLCACHE_LLM_CACHE_MAX_SIZE", &cfg.LLM.CacheMaxSize)

	setString("TTLCACHE_PERSISTENCE_BACKEND", &cfg.Persistence.Backend)
	setString("TTLCACHE_PERSISTENCE_WRITE_POLICY", &cfg.Persistence.WritePolicy)
	setInt("TTLCACHE_PERSISTENCE_BUFFER", &cfg.Persistence.Buffer)
	setDuration("TTLCACHE_PERSISTENCE_TTL", &cfg.Persistence.TTL)

	setString("TTLCACHE_REDIS_ADDR", &cfg.Redis.Addr)
	setString("TTLCACHE_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("TTLCACHE_REDIS_DB", &cfg.Redis.DB)
	setString("TTLCACHE_REDIS_KEY_PREFIX", &cfg.Redis.KeyPrefix)
	setBool("TTLCACHE_REDIS_INVALIDATION", &cfg.Redis.Invalidation)

	setString("TTLCACHE_POSTGRES_DSN", &cfg.Postgres.DSN)

	setString("TTLCACHE_SERVER_ADDR", &cfg.Server.Addr)
	if v := os.Getenv("TTLCACHE_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	setString("TTLCACHE_LOG_LEVEL", &cfg.Log.Level)
	setString("TTLCACHE_LOG_FORMAT", &cfg.Log.Format)

	setBool("TTLCACHE_TRACING_ENABLED", &cfg.Tracing.Enabled)
	setString("TTLCACHE_TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	setString("TTLCACHE_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	if v := os.Getenv("TTLCACHE_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the values a cache or store cannot start with.
func (c *Config) Validate() error {
	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("%w: cache.max_size must be at least 1", ErrInvalid)
	}
	if c.LLM.CacheMaxSize < 1 {
		return fmt.Errorf("%w: llm.cache_max_size must be at least 1", ErrInvalid)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", ErrInvalid)
	}

	switch c.Persistence.Backend {
	case "none", "":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for the redis backend", ErrInvalid)
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres.dsn is required for the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown persistence.backend %q", ErrInvalid, c.Persistence.Backend)
	}

	switch c.Persistence.WritePolicy {
	case "through", "back":
	default:
		return fmt.Errorf("%w: unknown persistence.write_policy %q", ErrInvalid, c.Persistence.WritePolicy)
	}
	if c.Persistence.WritePolicy == "back" && c.Persistence.Buffer < 1 {
		return fmt.Errorf("%w: persistence.buffer must be at least 1", ErrInvalid)
	}

	if c.Redis.Invalidation && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.invalidation needs redis.addr", ErrInvalid)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalid, c.Log.Format)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("%w: tracing.sample_rate must be within [0, 1]", ErrInvalid)
	}
	return nil
}
