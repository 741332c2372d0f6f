package chunker

import (
	"strings"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

const (
	// DefaultChunkSize is the number of words in one window
	DefaultChunkSize = 2000

	// DefaultOverlap is the number of trailing words of a window repeated at the start of the next
	DefaultOverlap = 200

	// DefaultMaxChunks bounds the windows produced per document
	DefaultMaxChunks = 20
)

// Chunker splits document text into overlapping word windows
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker
type Option func(*Chunker)

// WithChunkSize sets the window size in words
func WithChunkSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.chunkSize = words
		}
	}
}

// WithOverlap sets the overlap in words
func WithOverlap(words int) Option {
	return func(c *Chunker) {
		if words >= 0 {
			c.overlap = words
		}
	}
}

// New creates a Chunker. The overlap is clamped below the chunk size.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize - 1
	}
	return c
}

// ChunkSize returns the configured window size in words
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in words
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into at most maxWindows chunks.
// Text that fits in one window yields a single chunk; empty text yields none.
// Words beyond maxWindows*chunkSize are dropped.
func (c *Chunker) Chunk(text string, maxWindows int) []types.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWindows <= 0 {
		maxWindows = DefaultMaxChunks
	}

	if len(words) <= c.chunkSize {
		return []types.DocumentChunk{
			types.NewDocumentChunk(0, strings.Join(words, " "), 0, len(words), 0),
		}
	}

	chunks := make([]types.DocumentChunk, 0, min(maxWindows, len(words)/c.chunkSize+1))
	for start := 0; start < len(words) && len(chunks) < maxWindows; start += c.chunkSize {
		end := min(start+c.chunkSize, len(words))

		overlapStart := start
		if start > 0 {
			overlapStart = max(0, start-c.overlap)
		}

		content := strings.Join(words[overlapStart:end], " ")
		chunks = append(chunks, types.NewDocumentChunk(len(chunks), content, start, end, start-overlapStart))
	}

	return chunks
}

// Coverage returns the number of source words represented by chunks, excluding overlap
func Coverage(chunks []types.DocumentChunk) int {
	n := 0
	for _, ch := range chunks {
		n += ch.EndWord - ch.StartWord
	}
	return n
}
