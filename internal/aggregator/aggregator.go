// Package aggregator combines per-chunk analyses into one document-level analysis.
package aggregator

import (
	"sort"
	"strings"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// List caps applied after the cross-chunk union
const (
	MaxTopLevelItems = 10 // keywords, key concepts, authors
	MaxNestedItems   = 5  // technical and business sub-lists
)

// Result is the aggregated analysis of a document
type Result struct {
	Analysis types.Analysis
	// Confidence is the mean of the chunk confidences, 0 for no chunks
	Confidence float64
	Chunks     int
	// SuccessfulPasses counts parsed passes across all chunks
	SuccessfulPasses int
}

// Aggregate merges chunk analyses.
//
// Scalar fields come from the chunk with the highest confidence (ties go to the
// lowest chunk index); a scalar that chunk lacks is taken from the next best chunk.
// List fields are unioned in chunk order, de-duplicated case-insensitively and capped.
// The complexity level is decided by majority vote, ties going to the first value seen.
func Aggregate(chunks []types.ChunkAnalysis) Result {
	var res Result
	res.Chunks = len(chunks)

	if len(chunks) == 0 {
		res.Analysis.Normalize()
		return res
	}

	ordered := make([]types.ChunkAnalysis, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	ranked := make([]types.ChunkAnalysis, len(ordered))
	copy(ranked, ordered)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	var a types.Analysis
	for _, c := range ranked {
		fillScalars(&a, c.Analysis)
	}

	var (
		authors, keywords, concepts      []string
		technologies, methodologies      []string
		tools, industry, useCases, roles []string
		complexity                       []types.Difficulty
		total                            float64
	)
	for _, c := range ordered {
		ca := c.Analysis
		authors = append(authors, ca.Authors...)
		keywords = append(keywords, ca.Keywords...)
		concepts = append(concepts, ca.KeyConcepts...)
		technologies = append(technologies, ca.Technical.Technologies...)
		methodologies = append(methodologies, ca.Technical.Methodologies...)
		tools = append(tools, ca.Technical.Tools...)
		industry = append(industry, ca.Business.Industry...)
		useCases = append(useCases, ca.Business.UseCases...)
		roles = append(roles, ca.Business.Stakeholders...)
		if ca.Technical.ComplexityLevel != "" {
			complexity = append(complexity, ca.Technical.ComplexityLevel)
		}

		total += clamp(c.Confidence)
		for _, p := range c.Passes {
			if p.OK {
				res.SuccessfulPasses++
			}
		}
	}

	a.Authors = Union(authors, MaxTopLevelItems)
	a.Keywords = Union(keywords, MaxTopLevelItems)
	a.KeyConcepts = Union(concepts, MaxTopLevelItems)
	a.Technical.Technologies = Union(technologies, MaxNestedItems)
	a.Technical.Methodologies = Union(methodologies, MaxNestedItems)
	a.Technical.Tools = Union(tools, MaxNestedItems)
	a.Technical.ComplexityLevel = Vote(complexity)
	a.Business.Industry = Union(industry, MaxNestedItems)
	a.Business.UseCases = Union(useCases, MaxNestedItems)
	a.Business.Stakeholders = Union(roles, MaxNestedItems)
	a.Normalize()

	res.Analysis = a
	res.Confidence = total / float64(len(chunks))
	return res
}

func fillScalars(dst *types.Analysis, src types.Analysis) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.Difficulty == "" {
		dst.Difficulty = src.Difficulty
	}
	if dst.ContentPreview == "" {
		dst.ContentPreview = src.ContentPreview
	}
	if dst.Business.BusinessValue == "" {
		dst.Business.BusinessValue = src.Business.BusinessValue
	}
}

// Union de-duplicates items case-insensitively, keeping the first spelling and order, then caps the result
func Union(items []string, limit int) []string {
	out := []string{}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Vote returns the most frequent value; ties go to the value seen first
func Vote[T comparable](values []T) T {
	var zero T
	counts := make(map[T]int, len(values))
	best, bestCount := zero, 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
