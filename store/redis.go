package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/krisalay/ttl-cache/types"
)

// DefaultKeyPrefix namespaces every key this module writes to Redis.
const DefaultKeyPrefix = "ttlcache:"

var _ types.Store = (*RedisStore)(nil)

// RedisStore implements Store on Redis, so memoized values survive restarts
// and are shared by every instance pointing at the same server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreFromClient(client, cfg.KeyPrefix)
}

// NewRedisStoreFromClient creates a Redis store using an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Client exposes the underlying client so the invalidator can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
