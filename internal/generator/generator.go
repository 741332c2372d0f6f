package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyPrompt         = errors.New("prompt cannot be empty")
	ErrProviderFailed      = errors.New("generation provider failed")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrNoProviderEnabled   = errors.New("no generation provider configured")
	ErrModelUnavailable    = errors.New("model unavailable")
)

// Options are the sampling parameters sent with a prompt
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Stop        []string
}

// Generator is the text-generation service boundary.
// Responses are free-form and untrusted; structure is imposed by the caller.
type Generator interface {
	// Generate returns the completion for prompt, retrying transient failures with backoff
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// IsAvailable is a cheap liveness probe that never runs inference
	IsAvailable(ctx context.Context) bool

	// EnsureModelAvailable checks the configured model is installed, pulling it if the provider supports that
	EnsureModelAvailable(ctx context.Context) bool

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the generator
	Close() error
}

// ResponseStore is a persistent second-level response cache
type ResponseStore interface {
	GetResponse(ctx context.Context, key string) (string, bool, error)
	PutResponse(ctx context.Context, key, model, response string) error
}

// Cache provides in-memory LRU caching of responses keyed by request hash
type Cache struct {
	cache *lru.Cache[string, string]
}

// NewCache creates a new response cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 1000
	}
	cache, err := lru.New[string, string](maxLen)
	if err != nil {
		cache, _ = lru.New[string, string](1000)
	}
	return &Cache{cache: cache}
}

// Get returns a cached response
func (c *Cache) Get(key string) (string, bool) {
	return c.cache.Get(key)
}

// Set stores a response, evicting the least recently used entry at capacity
func (c *Cache) Set(key, response string) {
	c.cache.Add(key, response)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeKey hashes everything that determines a response: model, prompt and options
func ComputeKey(model, prompt string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%g\x00%g\x00%d\x00%s",
		model, prompt, opts.Temperature, opts.TopP, opts.MaxTokens, strings.Join(opts.Stop, "\x1f"))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidatePrompt rejects prompts that cannot produce a useful response
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}
