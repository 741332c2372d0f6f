package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonardonifabio/tech-documents/internal/logger"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func newTestOllama(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		Host:   server.URL,
		Model:  "gemma3:4b",
		Retry:  fastRetry(),
		Logger: logger.Discard(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p := NewOllamaProvider(cfg)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func (m *memoryStore) GetResponse(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) PutResponse(_ context.Context, key, _, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = response
	m.puts++
	return nil
}

func TestOllamaProvider_Generate(t *testing.T) {
	t.Run("sends prompt and options", func(t *testing.T) {
		var got ollamaGenerateRequest
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/generate", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"title":"x"}`, "done": true})
		})

		out, err := p.Generate(context.Background(), "describe", Options{
			Temperature: 0.1, TopP: 0.9, MaxTokens: 500, Stop: []string{"Note:"},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"title":"x"}`, out)

		assert.Equal(t, "gemma3:4b", got.Model)
		assert.Equal(t, "describe", got.Prompt)
		assert.False(t, got.Stream)
		require.NotNil(t, got.Options)
		assert.Equal(t, 0.9, got.Options.TopP)
		assert.Equal(t, 500, got.Options.NumPredict)
		assert.Equal(t, []string{"Note:"}, got.Options.Stop)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok", "done": true})
		})

		out, err := p.Generate(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := p.Generate(context.Background(), "p", Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderFailed))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		})

		_, err := p.Generate(context.Background(), "p", Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderFailed))
		assert.Contains(t, err.Error(), "404")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty prompt", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("server must not be called")
		})
		_, err := p.Generate(context.Background(), "  ", Options{})
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("cancelled context", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Generate(ctx, "p", Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOllamaProvider_Caching(t *testing.T) {
	t.Run("memory cache", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "cached", "done": true})
		}, func(c *Config) { c.CacheSize = 10 })

		for i := 0; i < 3; i++ {
			out, err := p.Generate(context.Background(), "same", Options{MaxTokens: 10})
			require.NoError(t, err)
			assert.Equal(t, "cached", out)
		}
		assert.Equal(t, int32(1), calls.Load())

		_, err := p.Generate(context.Background(), "same", Options{MaxTokens: 20})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load(), "different options are a different request")
	})

	t.Run("empty responses are not cached", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "", "done": true})
		}, func(c *Config) { c.CacheSize = 10 })

		for i := 0; i < 2; i++ {
			_, err := p.Generate(context.Background(), "p", Options{})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("persistent store", func(t *testing.T) {
		store := &memoryStore{}
		var calls atomic.Int32
		handler := func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "stored", "done": true})
		}

		first := newTestOllama(t, handler, func(c *Config) { c.Store = store })
		_, err := first.Generate(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, store.puts)

		second := newTestOllama(t, handler, func(c *Config) { c.Store = store })
		out, err := second.Generate(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, "stored", out)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	assert.True(t, p.IsAvailable(context.Background()))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()
	dead := NewOllamaProvider(Config{Host: host, Logger: logger.Discard()})
	assert.False(t, dead.IsAvailable(context.Background()))
}

func TestOllamaProvider_EnsureModelAvailable(t *testing.T) {
	t.Run("model already installed", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/pull" {
				t.Error("pull must not be called")
			}
			_, _ = w.Write([]byte(`{"models":[{"name":"gemma3:4b","model":"gemma3:4b"}]}`))
		})
		assert.True(t, p.EnsureModelAvailable(context.Background()))
	})

	t.Run("missing model is pulled", func(t *testing.T) {
		var pulled atomic.Bool
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/tags":
				_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
			case "/api/pull":
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "gemma3:4b", body["model"])
				pulled.Store(true)
				_, _ = w.Write([]byte(`{"status":"success"}`))
			}
		})
		assert.True(t, p.EnsureModelAvailable(context.Background()))
		assert.True(t, pulled.Load())
	})

	t.Run("pull failure", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/pull" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"models":[]}`))
		})
		assert.False(t, p.EnsureModelAvailable(context.Background()))
	})
}

func TestModelMatches(t *testing.T) {
	tests := []struct {
		installed, want string
		match           bool
	}{
		{"gemma3:4b", "gemma3:4b", true},
		{"llama3:latest", "llama3", true},
		{"llama3:8b", "llama3", false},
		{"gemma3:4b", "gemma3:12b", false},
		{"", "gemma3", false},
	}
	for _, tt := range tests {
		t.Run(tt.installed+"_"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.match, modelMatches(tt.installed, tt.want))
		})
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("chat completion", func(t *testing.T) {
		var got openAIChatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(Config{APIKey: "test-key", Host: server.URL, Retry: fastRetry(), Logger: logger.Discard()})
		require.NoError(t, err)
		defer p.Close()

		out, err := p.Generate(context.Background(), "hi", Options{Stop: []string{"a", "b", "c", "d", "e"}, MaxTokens: 50})
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
		assert.Equal(t, DefaultOpenAIModel, got.Model)
		assert.Len(t, got.Stop, maxOpenAIStop)
		assert.Equal(t, 50, got.MaxTokens)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "hi", got.Messages[0].Content)
	})

	t.Run("model availability", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/models", "/models/gpt-4o-mini":
				_, _ = w.Write([]byte(`{}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(Config{APIKey: "k", Host: server.URL, Logger: logger.Discard()})
		require.NoError(t, err)
		assert.True(t, p.IsAvailable(context.Background()))
		assert.True(t, p.EnsureModelAvailable(context.Background()))

		other, err := NewOpenAIProvider(Config{APIKey: "k", Host: server.URL, Model: "unknown", Logger: logger.Discard()})
		require.NoError(t, err)
		assert.False(t, other.EnsureModelAvailable(context.Background()))
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider(Config{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("provider metadata", func(t *testing.T) {
		p, err := NewOpenAIProvider(Config{APIKey: "k", Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Provider())
		assert.Equal(t, "m", p.Model())
	})
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	assert.Equal(t, 2, c.Size())

	_, ok := c.Get("a")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestComputeKey(t *testing.T) {
	base := ComputeKey("m", "p", Options{Temperature: 0.1})
	assert.Len(t, base, 64)
	assert.Equal(t, base, ComputeKey("m", "p", Options{Temperature: 0.1}))
	assert.NotEqual(t, base, ComputeKey("m2", "p", Options{Temperature: 0.1}))
	assert.NotEqual(t, base, ComputeKey("m", "p", Options{Temperature: 0.2}))
	assert.NotEqual(t, base, ComputeKey("m", "p", Options{Temperature: 0.1, Stop: []string{"x"}}))
}
