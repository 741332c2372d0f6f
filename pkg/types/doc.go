// Package types defines the domain model shared by the document pipeline.
//
// The model follows the life of one PDF through a run:
//
//   - SourceFile: a PDF found in the documents directory, identified by its content hash.
//   - DocumentChunk: an overlapping window of the extracted text, the unit sent to the
//     text-generation service.
//   - Analysis: the structured fields recovered from service responses. Every field
//     has a usable zero value; emptiness means "not recovered".
//   - PassResult and ChunkAnalysis: per-prompt and per-chunk results, the latter with a
//     confidence score equal to the fraction of passes that produced a parsable response.
//   - DocumentRecord: the persisted unit of the corpus, always fully populated after
//     validation.
//
// Category and Difficulty are closed enums. Free text from the service is converted with
// ParseCategory and ParseDifficulty at the parse boundary; anything unrecognized is left
// empty and resolved later by validation.
//
// DocumentRecord round-trips unknown JSON fields through Extra so that fields added to the
// corpus by other tools are not lost when the pipeline rewrites the file.
package types
