// Package chunker divides extracted document text into overlapping word windows.
//
// A window is the unit of analysis sent to the text-generation service, so its size
// bounds the prompt length and the number of windows bounds the cost of one document.
//
// # Basic Usage
//
//	c := chunker.New(chunker.WithChunkSize(2000), chunker.WithOverlap(200))
//	for _, ch := range c.Chunk(text, 20) {
//	    fmt.Printf("chunk %d: words %d-%d (overlap %d)\n",
//	        ch.Index, ch.StartWord, ch.EndWord, ch.OverlapWords)
//	}
//
// # Windowing
//
// Text is split on whitespace. If the whole document fits in one window it is returned
// as a single chunk. Otherwise windows start every ChunkSize words, and every window
// after the first is prefixed with the last Overlap words of the previous window so
// that a concept spanning a boundary is seen whole by at least one chunk. Chunks carry
// HasOverlap and OverlapWords so consumers can strip the prefix again.
//
// # Bounds
//
// At most maxWindows chunks are produced. Words past that cap are dropped: this bounds
// analysis cost, it does not guarantee coverage of very long documents.
//
// # Determinism
//
// The same text and parameters always produce identical chunk boundaries and IDs.
// IDs are a short SHA-256 prefix of the chunk content.
package chunker
