package cache_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	cache "github.com/krisalay/ttl-cache"
	"github.com/krisalay/ttl-cache/internal/logging"
)

//
// ================= TEST METRICS =================
//

type testMetrics struct {
	mu                                            sync.Mutex
	hits, misses, evictions, expired, factoryErrs int
}

func (m *testMetrics) Hit()          { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *testMetrics) Miss()         { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *testMetrics) Eviction()     { m.mu.Lock(); m.evictions++; m.mu.Unlock() }
func (m *testMetrics) Expire()       { m.mu.Lock(); m.expired++; m.mu.Unlock() }
func (m *testMetrics) FactoryError() { m.mu.Lock(); m.factoryErrs++; m.mu.Unlock() }

//
// ================= HELPER: CREATE CACHE =================
//

func newTestCache(ttl time.Duration, maxSize int) (*cache.TTLCache[int], *clock.Mock, *testMetrics) {
	mock := clock.NewMock()
	m := &testMetrics{}
	c := cache.New[int](ttl, maxSize,
		cache.WithName("test"),
		cache.WithClock(mock),
		cache.WithMetrics(m),
		cache.WithLogger(logging.Discard()),
	)
	return c, mock, m
}

//
// ================= BASIC OPERATIONS =================
//

func TestAddAndRetrieve(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)

	c.Set("key1", 1)

	v, ok := c.Get("key1")
	if !ok || v != 1 {
		t.Fatalf("expected 1, true; got %v, %v", v, ok)
	}
}

func TestRetrieveNonExistentKey(t *testing.T) {
	c, _, m := newTestCache(time.Minute, 10)

	v, ok := c.Get("missing")
	if ok || v != 0 {
		t.Fatalf("expected zero, false; got %v, %v", v, ok)
	}
	if m.misses != 1 {
		t.Fatalf("expected 1 miss, got %d", m.misses)
	}
}

func TestUpdateExistingKey(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)

	c.Set("key1", 1)
	c.Set("key1", 2)

	if v, _ := c.Get("key1"); v != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
	if c.Size() != 1 {
		t.Fatalf("overwrite must not count twice, size = %d", c.Size())
	}
}

func TestRemoveKey(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)

	c.Set("key1", 1)
	c.Delete("key1")
	c.Delete("never-existed")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key1 to be gone after Delete")
	}
	if c.Size() != 0 {
		t.Fatalf("expected size 0, got %d", c.Size())
	}
}

func TestEmptyKeyIsAValidKey(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 1)

	c.Set("", 7)
	if v, ok := c.Get(""); !ok || v != 7 {
		t.Fatalf("expected 7, true; got %v, %v", v, ok)
	}

	c.Set("other", 8)
	if c.Has("") {
		t.Fatal("empty key should have been evicted")
	}
}

func TestNewPanicsOnNonPositiveMaxSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	cache.New[int](time.Minute, 0)
}

func TestNewPanicsOnNilExpiration(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: a nil strategy would keep entries alive forever")
		}
	}()
	cache.New[int](time.Minute, 1, cache.WithExpiration(nil))
}

func TestAccessors(t *testing.T) {
	c := cache.New[string](5*time.Second, 3, cache.WithName("llm"))

	if c.Name() != "llm" || c.DefaultTTL() != 5*time.Second || c.MaxSize() != 3 {
		t.Fatalf("unexpected accessors: %s %v %d", c.Name(), c.DefaultTTL(), c.MaxSize())
	}
}

//
// ================= CAPACITY & EVICTION =================
//

func TestEvictionScenario(t *testing.T) {
	c, _, m := newTestCache(5*time.Second, 2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be evicted")
	}
	if v, _ := c.Get("b"); v != 2 {
		t.Fatalf("expected b=2, got %v", v)
	}
	if v, _ := c.Get("c"); v != 3 {
		t.Fatalf("expected c=3, got %v", v)
	}
	if m.evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", m.evictions)
	}
}

func TestEvictionIsFIFONotLRU(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Reading a would save it under LRU. FIFO must still evict it.
	c.Get("a")
	c.Get("a")
	c.Set("d", 4)

	if c.Has("a") {
		t.Fatal("a should have been evicted despite recent reads")
	}
	for _, k := range []string{"b", "c", "d"} {
		if !c.Has(k) {
			t.Fatalf("expected %s to be present", k)
		}
	}
}

func TestEvictionIgnoresRemainingTTL(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 2)

	c.SetWithTTL("long", 1, time.Hour)
	c.SetWithTTL("short", 2, time.Second)
	c.Set("new", 3)

	if c.Has("long") {
		t.Fatal("oldest entry must be evicted even though it has the most TTL left")
	}
	if !c.Has("short") {
		t.Fatal("short should survive")
	}
}

func TestInsertingMaxSizePlusOneKeys(t *testing.T) {
	const maxSize = 50
	c, _, _ := newTestCache(time.Minute, maxSize)

	keys := make([]string, maxSize+1)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		c.Set(keys[i], i)
	}

	if c.Size() != maxSize {
		t.Fatalf("size = %d, want %d", c.Size(), maxSize)
	}
	if c.Has(keys[0]) {
		t.Fatal("first inserted key should be unreachable")
	}
	for i, k := range keys[1:] {
		if v, ok := c.Get(k); !ok || v != i+1 {
			t.Fatalf("expected %s=%d, got %v, %v", k, i+1, v, ok)
		}
	}
}

func TestOverwriteKeepsInsertionPosition(t *testing.T) {
	c, _, m := newTestCache(time.Minute, 2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // full, but a already exists: no eviction

	if m.evictions != 0 {
		t.Fatalf("overwrite at capacity must not evict, got %d evictions", m.evictions)
	}

	c.Set("c", 3) // a is still the oldest insertion

	if c.Has("a") {
		t.Fatal("a keeps its original position and should be evicted first")
	}
	if v, _ := c.Get("b"); v != 2 {
		t.Fatalf("expected b=2, got %v", v)
	}
}

func TestEvictionMayRemoveStaleEntry(t *testing.T) {
	c, mock, m := newTestCache(time.Second, 2)

	c.Set("a", 1)
	mock.Add(2 * time.Second) // a is stale but still stored
	c.Set("b", 2)
	c.Set("c", 3)

	if m.evictions != 1 || c.Size() != 2 {
		t.Fatalf("evictions = %d size = %d", m.evictions, c.Size())
	}
	if got := c.Keys(); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("Keys() = %v, want [b c]", got)
	}
}

//
// ================= TTL =================
//

func TestTTLExpiration(t *testing.T) {
	c, mock, m := newTestCache(time.Minute, 10)

	c.SetWithTTL("ttlKey", 1, time.Second)

	mock.Add(time.Second)
	if _, ok := c.Get("ttlKey"); !ok {
		t.Fatal("entry at exactly its ttl is still live")
	}

	mock.Add(time.Millisecond)
	if _, ok := c.Get("ttlKey"); ok {
		t.Fatal("expected entry to be expired")
	}
	if m.expired != 1 {
		t.Fatalf("expected 1 expiration, got %d", m.expired)
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read, size = %d", c.Size())
	}
}

func TestTTLExpirationRealClock(t *testing.T) {
	c := cache.New[string](time.Minute, 10, cache.WithLogger(logging.Discard()))

	c.SetWithTTL("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected k to expire after 1ms")
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c, mock, _ := newTestCache(5*time.Second, 10)

	c.Set("k", 1)
	mock.Add(5 * time.Second)
	if !c.Has("k") {
		t.Fatal("expected k alive at default ttl")
	}
	mock.Add(time.Nanosecond)
	if c.Has("k") {
		t.Fatal("expected k expired after default ttl")
	}
}

func TestPerEntryTTL(t *testing.T) {
	c, mock, _ := newTestCache(time.Minute, 10)

	c.SetWithTTL("short", 1, time.Second)
	c.SetWithTTL("long", 2, time.Hour)
	mock.Add(2 * time.Second)

	if c.Has("short") {
		t.Fatal("short should be expired")
	}
	if !c.Has("long") {
		t.Fatal("long should be alive")
	}
}

func TestReadDoesNotRefreshTTL(t *testing.T) {
	c, mock, _ := newTestCache(time.Minute, 10)

	c.SetWithTTL("k", 1, 10*time.Second)
	for i := 0; i < 9; i++ {
		mock.Add(time.Second)
		c.Get("k")
	}
	mock.Add(2 * time.Second)

	if c.Has("k") {
		t.Fatal("reads must not slide the expiration window")
	}
}

func TestOverwriteResetsTimestamp(t *testing.T) {
	c, mock, _ := newTestCache(time.Minute, 10)

	c.SetWithTTL("k", 1, 10*time.Second)
	mock.Add(8 * time.Second)
	c.SetWithTTL("k", 2, 10*time.Second)
	mock.Add(8 * time.Second)

	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Fatalf("expected fresh value 2, got %v, %v", v, ok)
	}
}

func TestSizeCountsStaleEntries(t *testing.T) {
	c, mock, _ := newTestCache(time.Second, 10)

	c.Set("a", 1)
	c.Set("b", 2)
	mock.Add(time.Minute)

	if c.Size() != 2 {
		t.Fatalf("stale entries stay counted until touched, size = %d", c.Size())
	}

	c.Get("a")
	if c.Size() != 1 {
		t.Fatalf("expected lazy removal of a, size = %d", c.Size())
	}
}

func TestExpiredKeyReinsertedGoesToBack(t *testing.T) {
	c, mock, _ := newTestCache(time.Minute, 3)

	c.SetWithTTL("a", 1, time.Second)
	c.Set("b", 2)
	mock.Add(2 * time.Second)
	c.Get("a") // lazily removes a
	c.Set("a", 10)

	if got := c.Keys(); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("Keys() = %v, want [b a]", got)
	}
}

//
// ================= HAS / CLEAR =================
//

func TestHasAgreesWithGet(t *testing.T) {
	c, mock, _ := newTestCache(time.Minute, 2)

	c.Set("live", 1)
	c.SetWithTTL("stale", 2, time.Second)
	mock.Add(2 * time.Second)

	for _, k := range []string{"live", "stale", "missing"} {
		has := c.Has(k)
		_, got := c.Get(k)
		if has != got {
			t.Fatalf("Has(%q) = %v but Get hit = %v", k, has, got)
		}
	}
}

func TestHasRemovesExpiredEntry(t *testing.T) {
	c, mock, _ := newTestCache(time.Second, 10)

	c.Set("k", 1)
	mock.Add(2 * time.Second)

	if c.Has("k") {
		t.Fatal("expected Has to report false")
	}
	if c.Size() != 0 {
		t.Fatalf("Has should lazily remove, size = %d", c.Size())
	}
}

func TestClear(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)

	keys := []string{"a", "b", "c", "d"}
	for i, k := range keys {
		c.Set(k, i)
	}
	c.Clear()

	if c.Size() != 0 {
		t.Fatalf("expected size 0, got %d", c.Size())
	}
	for _, k := range keys {
		if _, ok := c.Get(k); ok {
			t.Fatalf("expected %s to be absent after Clear", k)
		}
	}

	// Eviction bookkeeping is reset too.
	c.Set("x", 1)
	if got := c.Keys(); !slices.Equal(got, []string{"x"}) {
		t.Fatalf("Keys() after Clear = %v", got)
	}
}

//
// ================= GET OR SET =================
//

func TestGetOrSetCallsFactoryOnce(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)
	ctx := context.Background()

	calls := 0
	factory := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 2; i++ {
		v, err := c.GetOrSet(ctx, "answer", factory)
		if err != nil || v != 42 {
			t.Fatalf("GetOrSet = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
}

func TestGetOrSetFactoryError(t *testing.T) {
	c, _, m := newTestCache(time.Minute, 10)
	ctx := context.Background()

	boom := errors.New("upstream unavailable")
	_, err := c.GetOrSet(ctx, "k", func(context.Context) (int, error) {
		return 0, boom
	})

	if err != boom {
		t.Fatalf("expected the factory error unchanged, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("failed factory must not cache anything")
	}
	if m.factoryErrs != 1 {
		t.Fatalf("expected 1 factory error, got %d", m.factoryErrs)
	}

	// No negative caching: the next call retries the factory.
	v, err := c.GetOrSet(ctx, "k", func(context.Context) (int, error) { return 5, nil })
	if err != nil || v != 5 {
		t.Fatalf("retry GetOrSet = %v, %v", v, err)
	}
}

func TestGetOrSetWithTTL(t *testing.T) {
	c, mock, _ := newTestCache(time.Hour, 10)
	ctx := context.Background()

	calls := 0
	factory := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	c.GetOrSetWithTTL(ctx, "k", factory, time.Second)
	mock.Add(2 * time.Second)
	v, _ := c.GetOrSetWithTTL(ctx, "k", factory, time.Second)

	if calls != 2 || v != 2 {
		t.Fatalf("expected recompute after ttl, calls = %d v = %d", calls, v)
	}
}

func TestGetOrSetPassesContext(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "trace-1")

	_, err := c.GetOrSet(ctx, "k", func(ctx context.Context) (int, error) {
		if ctx.Value(ctxKey{}) != "trace-1" {
			t.Error("factory did not receive caller context")
		}
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

//
// ================= CONCURRENCY =================
//

func TestGetOrSetConcurrentMissInvokesFactoryTwice(t *testing.T) {
	c, _, _ := newTestCache(time.Minute, 10)
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{}, 2)
	release := []chan struct{}{make(chan struct{}), make(chan struct{})}

	factory := func(v int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls.Add(1)
			started <- struct{}{}
			<-release[v-1]
			return v, nil
		}
	}

	results := make([]int, 2)
	done := []chan struct{}{make(chan struct{}), make(chan struct{})}

	for i := 0; i < 2; i++ {
		go func(i int) {
			defer close(done[i])
			results[i], _ = c.GetOrSet(ctx, "k", factory(i+1))
		}(i)
		<-started
	}

	// Both callers missed and are inside their factories.
	close(release[0]) // first finishes and stores 1
	<-done[0]
	close(release[1]) // second finishes and overwrites with 2
	<-done[1]

	if calls.Load() != 2 {
		t.Fatalf("factory calls = %d, want 2 (no single-flight)", calls.Load())
	}
	if results[0] != 1 || results[1] != 2 {
		t.Fatalf("each caller gets its own factory result, got %v", results)
	}
	if v, _ := c.Get("k"); v != 2 {
		t.Fatalf("last write should win, got %v", v)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := cache.New[int](time.Minute, 64, cache.WithLogger(logging.Discard()))

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := string(rune('a' + (id+i)%26))
				c.Set(k, i)
				c.Get(k)
				c.Has(k)
				if i%50 == 0 {
					c.Delete(k)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 64 {
		t.Fatalf("size %d exceeds max", c.Size())
	}
}
