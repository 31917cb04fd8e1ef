package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/ttl-cache"
	"github.com/krisalay/ttl-cache/internal/logging"
	"github.com/krisalay/ttl-cache/llm"
	"github.com/krisalay/ttl-cache/store"
	"github.com/krisalay/ttl-cache/writepolicy"
)

// ================= METRICS =================
type counterMetrics struct {
	mu            sync.Mutex
	hits          int
	misses        int
	evictions     int
	expired       int
	factoryErrors int
}

func (m *counterMetrics) Hit()          { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *counterMetrics) Miss()         { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *counterMetrics) Eviction()     { m.mu.Lock(); m.evictions++; m.mu.Unlock() }
func (m *counterMetrics) Expire()       { m.mu.Lock(); m.expired++; m.mu.Unlock() }
func (m *counterMetrics) FactoryError() { m.mu.Lock(); m.factoryErrors++; m.mu.Unlock() }

func (m *counterMetrics) Print() {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Println("\n==================== METRICS ====================")
	fmt.Printf("HITS           : %d\n", m.hits)
	fmt.Printf("MISSES         : %d\n", m.misses)
	fmt.Printf("EVICTIONS      : %d\n", m.evictions)
	fmt.Printf("EXPIRED        : %d\n", m.expired)
	fmt.Printf("FACTORY ERRORS : %d\n", m.factoryErrors)
}

// echoProvider stands in for a real model in the walkthrough.
type echoProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *echoProvider) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	last := req.Messages[len(req.Messages)-1].Content
	return llm.Completion{Content: strings.ToUpper(last), Model: req.Model, FinishReason: "stop"}, nil
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through every cache behavior on a mock clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("log-level") {
				logging.InitStructured("text", logLevel)
			}
			runDemo(cmd.Context())
			return nil
		},
	}
}

func runDemo(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("EVICTION POLICY : FIFO (insertion order)")
	fmt.Println("TTL STRATEGY    : ExpireAfterWrite (lazy, strict >)")
	fmt.Println("DEFAULT TTL     : 5s")
	fmt.Println("CAPACITY        : 3 keys")

	clk := clock.NewMock()
	metrics := &counterMetrics{}

	c := cache.New[string](
		5*time.Second,
		3,
		cache.WithName("demo"),
		cache.WithClock(clk),
		cache.WithMetrics(metrics),
	)

	// ====================================================
	fmt.Println("\n==================== 1) CACHE MISS ====================")
	v, ok := c.Get("a")
	fmt.Printf("CACHE  → GET a = %q (found=%v)\n", v, ok)

	// ====================================================
	fmt.Println("\n==================== 2) SET + HIT ====================")
	c.Set("a", "alpha")
	v, ok = c.Get("a")
	fmt.Printf("CACHE  → GET a = %q (found=%v)\n", v, ok)

	// ====================================================
	fmt.Println("\n==================== 3) TTL EXPIRATION ====================")
	c.SetWithTTL("x", "temp-value", time.Second)
	fmt.Println("CACHE  → SET x (TTL = 1s)")

	clk.Add(time.Second)
	fmt.Printf("CLOCK  → +1s   HAS x = %v (age == ttl is still live)\n", c.Has("x"))

	clk.Add(time.Millisecond)
	fmt.Printf("CLOCK  → +1ms  HAS x = %v\n", c.Has("x"))
	fmt.Printf("CACHE  → SIZE = %d (x removed on lookup)\n", c.Size())

	// ====================================================
	fmt.Println("\n==================== 4) FIFO EVICTION ====================")
	c.Clear()
	c.Set("a", "alpha")
	c.Set("b", "beta")
	c.Set("c", "gamma")
	c.Get("a")
	fmt.Println("CACHE  → SET a, b, c then GET a")
	c.Set("d", "delta")
	fmt.Println("CACHE  → SET d (cache full)")
	fmt.Printf("CACHE  → HAS a = %v (oldest insert, reads do not protect it)\n", c.Has("a"))
	fmt.Printf("CACHE  → KEYS  = %v\n", c.Keys())

	// ====================================================
	fmt.Println("\n==================== 5) OVERWRITE KEEPS POSITION ====================")
	c.Set("b", "beta-2")
	fmt.Println("CACHE  → SET b again")
	c.Set("e", "epsilon")
	fmt.Println("CACHE  → SET e (cache full)")
	fmt.Printf("CACHE  → HAS b = %v (rewrite did not move it to the back)\n", c.Has("b"))
	fmt.Printf("CACHE  → KEYS  = %v\n", c.Keys())

	// ====================================================
	fmt.Println("\n==================== 6) GET OR SET ====================")
	calls := 0
	factory := func(context.Context) (string, error) {
		calls++
		return "computed", nil
	}
	v, _ = c.GetOrSet(ctx, "g", factory)
	fmt.Printf("CACHE  → GETORSET g = %q (factory calls = %d)\n", v, calls)
	v, _ = c.GetOrSet(ctx, "g", factory)
	fmt.Printf("CACHE  → GETORSET g = %q (factory calls = %d)\n", v, calls)

	// ====================================================
	fmt.Println("\n==================== 7) FACTORY ERROR ====================")
	errUpstream := errors.New("upstream unavailable")
	_, err := c.GetOrSet(ctx, "h", func(context.Context) (string, error) {
		return "", errUpstream
	})
	fmt.Printf("CACHE  → GETORSET h error = %v (same error: %v)\n", err, err == errUpstream)
	fmt.Printf("CACHE  → HAS h = %v (nothing cached)\n", c.Has("h"))

	// ====================================================
	fmt.Println("\n==================== 8) CONCURRENT MISS ====================")

	var (
		mu       sync.Mutex
		invoked  int
		started  sync.WaitGroup
		finished sync.WaitGroup
	)
	started.Add(2)
	finished.Add(2)
	for i := 0; i < 2; i++ {
		go func(id int) {
			defer finished.Done()
			val, _ := c.GetOrSet(ctx, "race", func(context.Context) (string, error) {
				mu.Lock()
				invoked++
				mu.Unlock()
				// Both callers are inside the factory before either stores.
				started.Done()
				started.Wait()
				return fmt.Sprintf("from-goroutine-%d", id), nil
			})
			fmt.Printf("GOROUTINE-%d → GETORSET race = %q\n", id, val)
		}(i)
	}
	finished.Wait()
	v, _ = c.Get("race")
	fmt.Printf("CACHE  → factory ran %d times, stored value = %q (last write wins)\n", invoked, v)

	// ====================================================
	fmt.Println("\n==================== 9) DELETE + CLEAR ====================")
	c.Delete("race")
	c.Delete("never-there")
	fmt.Printf("CACHE  → DELETE race, HAS race = %v\n", c.Has("race"))
	c.Clear()
	fmt.Printf("CACHE  → CLEAR, SIZE = %d\n", c.Size())

	metrics.Print()

	// ====================================================
	fmt.Println("\n==================== 10) LLM MEMOIZATION ====================")
	shared := store.NewMemoryStore(clk)
	provider := &echoProvider{}
	llmCache := llm.NewCache(cache.WithClock(clk))
	svc := llm.NewService(llmCache, provider,
		llm.WithDefaultModel("echo"),
		llm.WithStore(shared),
		llm.WithWritePolicy(writepolicy.NewWriteThroughPolicy(shared, logging.Op())),
		llm.WithStoreTTL(time.Hour),
	)

	req := llm.Request{Messages: []llm.Message{{Role: "user", Content: "hello cache"}}}
	for i := 1; i <= 3; i++ {
		out, _ := svc.Complete(ctx, req)
		fmt.Printf("LLM    → call %d = %q (provider calls = %d)\n", i, out.Content, provider.calls)
	}

	clk.Add(llm.DefaultCacheTTL + time.Millisecond)
	out, _ := svc.Complete(ctx, req)
	fmt.Printf("CLOCK  → +10m1ms, call = %q (provider calls = %d, served by the shared store)\n", out.Content, provider.calls)
	fmt.Printf("STORE  → %d completion(s) persisted\n", shared.Len())

	// ====================================================
	fmt.Println("\n==================== SHUTDOWN ====================")
	svc.Close()
	fmt.Println("SYSTEM → demo finished cleanly")
}
