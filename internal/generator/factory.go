package generator

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lonardonifabio/tech-documents/internal/config"
)

// Environment variables read by NewFromEnv and DetectProvider
const (
	EnvProvider     = "DOCMETA_PROVIDER"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvOllamaModel  = "OLLAMA_MODEL"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIBase   = "OPENAI_BASE_URL"
)

// Config holds generator configuration
type Config struct {
	Provider          string
	Host              string // Ollama host or OpenAI-compatible base URL
	Model             string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side rate limiting
	CacheSize         int     // 0 disables the in-memory cache
	Retry             RetryConfig
	Store             ResponseStore
	Logger            *slog.Logger
}

// NewFromEnv creates a generator based on environment variables
// Priority:
// 1. DOCMETA_PROVIDER (ollama, openai)
// 2. OPENAI_API_KEY selects openai
// 3. Default to a local Ollama server
func NewFromEnv() (Generator, error) {
	provider := DetectProvider()
	cfg := Config{
		Provider:  provider,
		APIKey:    os.Getenv(EnvOpenAIAPIKey),
		CacheSize: 1000,
	}
	switch provider {
	case ProviderOllama:
		cfg.Host = os.Getenv(EnvOllamaHost)
		if cfg.Host != "" && !strings.Contains(cfg.Host, "://") {
			cfg.Host = "http://" + cfg.Host
		}
		cfg.Model = os.Getenv(EnvOllamaModel)
	case ProviderOpenAI:
		cfg.Host = os.Getenv(EnvOpenAIBase)
	}
	return New(cfg)
}

// New creates a generator with explicit configuration
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromConfig builds the generator described by the application configuration
func NewFromConfig(c config.Config, store ResponseStore, logger *slog.Logger) (Generator, error) {
	return New(Config{
		Provider:          c.Service.Provider,
		Host:              c.Service.Host,
		Model:             c.Service.Model,
		APIKey:            c.Service.APIKey,
		Timeout:           c.Service.Timeout.Duration,
		RequestsPerSecond: c.Service.RequestsPerSecond,
		CacheSize:         c.Service.CacheSize,
		Retry: RetryConfig{
			MaxRetries: c.Retry.MaxRetries,
			BaseDelay:  c.Retry.BaseDelay.Duration,
			MaxDelay:   c.Retry.MaxDelay.Duration,
			Multiplier: c.Retry.Multiplier,
		},
		Store:  store,
		Logger: logger,
	})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}
