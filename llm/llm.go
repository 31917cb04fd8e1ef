// Package llm memoizes language-model completions behind a TTL cache.
//
// A Service answers a Request from, in order:
//   - the in-process cache (10 minutes, 100 entries by default)
//   - the shared store, when one is configured
//   - the provider, whose answer is then handed to the write policy
package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	cache "github.com/krisalay/ttl-cache"
)

// Defaults for the LLM memo cache.
const (
	DefaultCacheTTL     = 10 * time.Minute
	DefaultCacheMaxSize = 100
	CacheName           = "llm"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the prompt plus the model parameters that affect the answer.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Completion is what gets memoized.
type Completion struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// Key derives a cache key from every field of req. Two requests that differ
// in any field, including message order, get different keys.
func Key(req Request) string {
	// Marshal of a struct with only strings, numbers and slices cannot fail.
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return "llm:" + hex.EncodeToString(sum[:])
}

// NewCache builds the LLM memo cache: DefaultCacheTTL, DefaultCacheMaxSize,
// named CacheName. Extra options are applied after the name.
func NewCache(opts ...cache.Option) *cache.TTLCache[Completion] {
	return NewCacheWithLimits(DefaultCacheTTL, DefaultCacheMaxSize, opts...)
}

// NewCacheWithLimits is NewCache with explicit limits, for configured deployments.
func NewCacheWithLimits(ttl time.Duration, maxSize int, opts ...cache.Option) *cache.TTLCache[Completion] {
	all := append([]cache.Option{cache.WithName(CacheName)}, opts...)
	return cache.New[Completion](ttl, maxSize, all...)
}
