// Package store provides shared backing stores for memoized values.
// Implementations satisfy types.Store.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/krisalay/ttl-cache/types"
)

var _ types.Store = (*MemoryStore)(nil)

// MemoryStore is a map-backed Store. It is what the demo and the tests use
// when no Redis or Postgres is around.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memItem
	clock  clock.Clock
	closed bool
}

type memItem struct {
	value     []byte
	expiresAt time.Time
}

func (it memItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// NewMemoryStore creates an empty MemoryStore. A nil clock means wall time.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{data: make(map[string]memItem), clock: clk}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.data[key]
	if !ok || it.expired(s.clock.Now()) {
		return nil, types.ErrNotFound
	}
	cp := make([]byte, len(it.value))
	copy(cp, it.value)
	return cp, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = memItem{value: cp, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored items, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = make(map[string]memItem)
	return nil
}
