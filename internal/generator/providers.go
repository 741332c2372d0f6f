package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// Default endpoints and models
	DefaultOllamaHost    = "http://127.0.0.1:11434"
	DefaultOllamaModel   = "gemma3:4b"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"

	// DefaultTimeout bounds a single generation request
	DefaultTimeout = 120 * time.Second

	// probeTimeout bounds liveness and model-list requests
	probeTimeout = 5 * time.Second

	// maxOpenAIStop is the number of stop sequences the chat completions API accepts
	maxOpenAIStop = 4
)

// client holds what every HTTP provider shares: caching, rate limiting and retry
type client struct {
	provider   string
	model      string
	httpClient *http.Client
	cache      *Cache
	store      ResponseStore
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     *slog.Logger
}

func newClient(provider string, cfg Config) client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := cfg.Retry
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryConfig()
	}

	c := client{
		provider:   provider,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		store:      cfg.Store,
		retry:      retry,
		logger:     cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if cfg.CacheSize > 0 {
		c.cache = NewCache(cfg.CacheSize)
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// generate serves prompt from the caches when possible, otherwise calls the service with retry
func (c *client) generate(ctx context.Context, prompt string, opts Options, call func(context.Context) (string, error)) (string, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}

	key := ComputeKey(c.model, prompt, opts)
	if c.cache != nil {
		if resp, ok := c.cache.Get(key); ok {
			return resp, nil
		}
	}
	if c.store != nil {
		resp, ok, err := c.store.GetResponse(ctx, key)
		if err != nil {
			c.logger.Debug("response store lookup failed", "error", err)
		} else if ok {
			if c.cache != nil {
				c.cache.Set(key, resp)
			}
			return resp, nil
		}
	}

	attempt := 0
	resp, err := retryWithBackoff(ctx, c.retry, func() (string, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		out, err := call(ctx)
		if err != nil {
			c.logger.Debug("generation attempt failed",
				"provider", c.provider, "model", c.model, "attempt", attempt, "error", err)
		}
		return out, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, attempt, err)
	}

	if strings.TrimSpace(resp) != "" {
		if c.cache != nil {
			c.cache.Set(key, resp)
		}
		if c.store != nil {
			if err := c.store.PutResponse(ctx, key, c.model, resp); err != nil {
				c.logger.Debug("response store write failed", "error", err)
			}
		}
	}
	return resp, nil
}

// postJSON sends body and decodes a 200 response into out.
// 429 and 5xx are retryable; other statuses are permanent.
func (c *client) postJSON(ctx context.Context, hc *http.Client, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(hc, req, out)
}

func (c *client) getJSON(ctx context.Context, endpoint string, headers map[string]string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(c.httpClient, req, out)
}

func (c *client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return err
		}
		return permanent(err)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// OllamaProvider implements Generator using a local Ollama server
type OllamaProvider struct {
	client
	host       string
	pullClient *http.Client
}

// ollamaGenerateRequest is the /api/generate request format
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewOllamaProvider creates a generator for an Ollama server
func NewOllamaProvider(cfg Config) *OllamaProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaProvider{
		client: newClient(ProviderOllama, cfg),
		host:   host,
		// pulls are bounded by the caller's context only; a model download can take minutes
		pullClient: &http.Client{},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return o.generate(ctx, prompt, opts, func(ctx context.Context) (string, error) {
		reqBody := ollamaGenerateRequest{
			Model:  o.model,
			Prompt: prompt,
			Stream: false,
			Options: &ollamaOptions{
				Temperature: opts.Temperature,
				TopP:        opts.TopP,
				NumPredict:  opts.MaxTokens,
				Stop:        opts.Stop,
			},
		}
		var genResp ollamaGenerateResponse
		if err := o.postJSON(ctx, o.httpClient, o.host+"/api/generate", nil, reqBody, &genResp); err != nil {
			return "", err
		}
		return genResp.Response, nil
	})
}

// IsAvailable checks the /api/tags endpoint, which answers without loading a model
func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return o.getJSON(ctx, o.host+"/api/tags", nil, nil) == nil
}

// EnsureModelAvailable pulls the configured model when the server does not list it
func (o *OllamaProvider) EnsureModelAvailable(ctx context.Context) bool {
	var tags ollamaTagsResponse
	if err := o.getJSON(ctx, o.host+"/api/tags", nil, &tags); err != nil {
		o.logger.Warn("cannot list models", "host", o.host, "error", err)
		return false
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, o.model) || modelMatches(m.Model, o.model) {
			return true
		}
	}

	o.logger.Info("pulling model", "model", o.model)
	pull := map[string]any{"model": o.model, "stream": false}
	if err := o.postJSON(ctx, o.pullClient, o.host+"/api/pull", nil, pull, nil); err != nil {
		o.logger.Warn("model pull failed", "model", o.model, "error", err)
		return false
	}
	return true
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	o.pullClient.CloseIdleConnections()
	return nil
}

// modelMatches treats an untagged name as the ":latest" tag
func modelMatches(installed, want string) bool {
	if installed == "" {
		return false
	}
	if installed == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return installed == want+":latest"
	}
	return false
}

// OpenAIProvider implements Generator using an OpenAI-compatible chat completions API
type OpenAIProvider struct {
	client
	apiKey  string
	baseURL string
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIProvider creates a generator for an OpenAI-compatible endpoint
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	baseURL := strings.TrimRight(cfg.Host, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	return &OpenAIProvider{
		client:  newClient(ProviderOpenAI, cfg),
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return p.generate(ctx, prompt, opts, func(ctx context.Context) (string, error) {
		stop := opts.Stop
		if len(stop) > maxOpenAIStop {
			stop = stop[:maxOpenAIStop]
		}
		reqBody := openAIChatRequest{
			Model:       p.model,
			Messages:    []openAIMessage{{Role: "user", Content: prompt}},
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			MaxTokens:   opts.MaxTokens,
			Stop:        stop,
		}
		var chatResp openAIChatResponse
		if err := p.postJSON(ctx, p.httpClient, p.baseURL+"/chat/completions", p.authHeader(), reqBody, &chatResp); err != nil {
			return "", err
		}
		if len(chatResp.Choices) == 0 {
			return "", fmt.Errorf("no choices returned")
		}
		return chatResp.Choices[0].Message.Content, nil
	})
}

func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return p.getJSON(ctx, p.baseURL+"/models", p.authHeader(), nil) == nil
}

// EnsureModelAvailable checks the model exists; hosted models cannot be pulled
func (p *OpenAIProvider) EnsureModelAvailable(ctx context.Context) bool {
	err := p.getJSON(ctx, p.baseURL+"/models/"+url.PathEscape(p.model), p.authHeader(), nil)
	if err != nil {
		p.logger.Warn("model not available", "model", p.model, "error", err)
		return false
	}
	return true
}

func (p *OpenAIProvider) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
