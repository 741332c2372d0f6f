// Package validator enforces the invariants of persisted document records.
// Every record leaving this package is schema-valid however degraded its input was.
package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// Limits bound the free-text fields of a record
type Limits struct {
	MinTitle    int
	MaxTitle    int
	MinSummary  int
	MaxSummary  int
	MaxPreview  int
	MaxKeywords int
}

// DefaultLimits returns the bounds applied by ValidateAndFill
func DefaultLimits() Limits {
	return Limits{
		MinTitle:    3,
		MaxTitle:    200,
		MinSummary:  20,
		MaxSummary:  1000,
		MaxPreview:  100,
		MaxKeywords: 5,
	}
}

const ellipsis = "..."

// ValidateAndFill applies DefaultLimits
func ValidateAndFill(a types.Analysis, filename string) types.Analysis {
	return DefaultLimits().ValidateAndFill(a, filename)
}

// ValidateAndFill returns a copy of a satisfying every record invariant.
// Missing or invalid fields are derived from the filename or replaced by defaults.
func (l Limits) ValidateAndFill(a types.Analysis, filename string) types.Analysis {
	a.Title = strings.TrimSpace(a.Title)
	if utf8.RuneCountInString(a.Title) < l.MinTitle {
		a.Title = TitleFromFilename(filename)
	}
	a.Title = truncate(a.Title, l.MaxTitle)

	if !a.Category.Valid() {
		a.Category = InferCategory(filename)
	}

	if !a.Difficulty.Valid() {
		if a.Technical.ComplexityLevel.Valid() {
			a.Difficulty = a.Technical.ComplexityLevel
		} else {
			a.Difficulty = types.DefaultDifficulty
		}
	}

	a.Keywords = dedupe(a.Keywords)
	if len(a.Keywords) > l.MaxKeywords {
		a.Keywords = a.Keywords[:l.MaxKeywords]
	}
	if len(a.Keywords) == 0 {
		a.Keywords = []string{string(a.Category), "Document"}
	}

	a.Authors = dedupe(a.Authors)

	a.Summary = strings.TrimSpace(a.Summary)
	switch n := utf8.RuneCountInString(a.Summary); {
	case n < l.MinSummary:
		a.Summary = "This document covers " + strings.ToLower(a.Title) +
			" providing comprehensive information and insights on " + strings.ToLower(string(a.Category)) + "."
	}
	a.Summary = truncate(a.Summary, l.MaxSummary)

	a.ContentPreview = strings.TrimSpace(a.ContentPreview)
	if a.ContentPreview == "" {
		a.ContentPreview = "Document: " + a.Title
	}
	if utf8.RuneCountInString(a.ContentPreview) > l.MaxPreview {
		a.ContentPreview = truncate(a.ContentPreview, l.MaxPreview)
	}

	a.Normalize()
	return a
}

// truncate cuts s to limit runes, the last three being an ellipsis
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:keep]), " ") + ellipsis
}

// dedupe drops blank and repeated items, keeping first-seen order
func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[strings.ToLower(item)] {
			continue
		}
		seen[strings.ToLower(item)] = true
		out = append(out, item)
	}
	return out
}
