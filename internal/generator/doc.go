// Package generator talks to the external text-generation service.
//
// Two providers are supported: a local Ollama server (the default) and any
// OpenAI-compatible chat completions endpoint. Both share the same request path:
//
//  1. the prompt is validated
//  2. the in-memory LRU cache, then the optional persistent ResponseStore, is consulted
//  3. the request is sent through an optional rate limiter, retrying transient
//     failures (network errors, 429, 5xx) with exponential backoff
//  4. non-empty responses are written back to both caches
//
// # Basic Usage
//
//	gen, err := generator.New(generator.Config{
//	    Provider: "ollama",
//	    Host:     "http://127.0.0.1:11434",
//	    Model:    "gemma3:4b",
//	})
//	if err != nil {
//	    return err
//	}
//	defer gen.Close()
//
//	if !gen.IsAvailable(ctx) || !gen.EnsureModelAvailable(ctx) {
//	    // fail fast instead of retrying against a dead endpoint
//	}
//
//	text, err := gen.Generate(ctx, prompt, generator.Options{Temperature: 0.1, MaxTokens: 500})
//
// Responses are returned verbatim. They may contain prose, reasoning sections or
// nothing at all; see package parser for turning them into structured fields.
//
// # Provider Selection
//
// NewFromEnv selects a provider from the environment:
//
//  1. If DOCMETA_PROVIDER is set → use specified provider
//  2. Else if OPENAI_API_KEY is set → use OpenAI
//  3. Else → use Ollama at OLLAMA_HOST (default http://127.0.0.1:11434)
//
// # Errors
//
// Generate wraps exhausted retries in ErrProviderFailed and returns the context
// error unchanged on cancellation. 4xx responses other than 429 are not retried.
package generator
