package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// DocumentChunk is a bounded window of a document's extracted text, the unit of analysis
type DocumentChunk struct {
	// ID is derived from the content hash and used for dedup and logging
	ID string

	// Index is the zero-based position of the chunk within its document
	Index int

	// Content is the window text, including any overlap prefix
	Content string

	// Word range of the window in the source text, excluding the overlap prefix.
	// StartWord is inclusive, EndWord exclusive.
	StartWord int
	EndWord   int

	// OverlapWords is the number of leading words repeated from the previous window
	OverlapWords int
	HasOverlap   bool
}

// NewDocumentChunk builds a chunk and derives its ID from the content
func NewDocumentChunk(index int, content string, startWord, endWord, overlapWords int) DocumentChunk {
	return DocumentChunk{
		ID:           ComputeChunkID(content),
		Index:        index,
		Content:      content,
		StartWord:    startWord,
		EndWord:      endWord,
		OverlapWords: overlapWords,
		HasOverlap:   overlapWords > 0,
	}
}

// ComputeChunkID returns a short hex id of the SHA-256 of the content
func ComputeChunkID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

// OwnContent returns the chunk content without the injected overlap prefix
func (c DocumentChunk) OwnContent() string {
	if c.OverlapWords == 0 {
		return c.Content
	}
	words := strings.Fields(c.Content)
	if c.OverlapWords >= len(words) {
		return ""
	}
	return strings.Join(words[c.OverlapWords:], " ")
}

// Validate checks the structural invariants of a chunk
func (c DocumentChunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.StartWord < 0 || c.EndWord < c.StartWord {
		return errors.New("invalid word range")
	}
	if c.HasOverlap != (c.OverlapWords > 0) {
		return errors.New("overlap flag does not match overlap size")
	}
	return nil
}
