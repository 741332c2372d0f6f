package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PopplerExtractor shells out to pdftotext from poppler-utils
type PopplerExtractor struct {
	// Binary is the pdftotext executable, looked up in PATH when not absolute
	Binary string
}

// NewPopplerExtractor creates an extractor using pdftotext from PATH
func NewPopplerExtractor() *PopplerExtractor {
	return &PopplerExtractor{Binary: "pdftotext"}
}

// Name implements Extractor
func (*PopplerExtractor) Name() string { return "pdftotext" }

// Extract implements Extractor
func (p *PopplerExtractor) Extract(ctx context.Context, path string, maxPages int) (string, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	bin, err := exec.LookPath(p.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, p.Binary)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-f", "1", "-l", strconv.Itoa(maxPages), "-enc", "UTF-8", path, "-")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := cleanText(string(out))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
