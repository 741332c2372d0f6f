package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Errors returned by extractors
var (
	ErrNoText      = errors.New("no text content found in PDF")
	ErrToolMissing = errors.New("extraction tool not installed")
)

// DefaultMaxPages bounds how many pages are read from one document
const DefaultMaxPages = 20

// Extractor pulls plain text out of a document
type Extractor interface {
	// Extract returns the text of at most maxPages pages of the file at path.
	// maxPages <= 0 means DefaultMaxPages.
	Extract(ctx context.Context, path string, maxPages int) (string, error)

	// Name identifies the extractor in logs
	Name() string
}

// Chain tries extractors in order and returns the first non-empty text
type Chain struct {
	extractors []Extractor
	logger     *slog.Logger
}

// NewChain builds a chain over extractors
func NewChain(logger *slog.Logger, extractors ...Extractor) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{extractors: extractors, logger: logger}
}

// Default returns the pdfcpu extractor backed by pdftotext
func Default(logger *slog.Logger) *Chain {
	return NewChain(logger, NewPDFExtractor(), NewPopplerExtractor())
}

// Name implements Extractor
func (c *Chain) Name() string {
	names := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		names[i] = e.Name()
	}
	return strings.Join(names, "+")
}

// Extract implements Extractor. The errors of every failed extractor are joined.
func (c *Chain) Extract(ctx context.Context, path string, maxPages int) (string, error) {
	var errs []error
	for _, e := range c.extractors {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := e.Extract(ctx, path, maxPages)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = ErrNoText
		}
		c.logger.Debug("extractor failed", "extractor", e.Name(), "file", path, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrNoText
	}
	return "", errors.Join(errs...)
}
