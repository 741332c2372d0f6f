package parser

import (
	"fmt"
	"strings"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// placeholders are template values a model sometimes echoes back instead of real content
var placeholders = func() map[string]bool {
	set := make(map[string]bool)
	for _, p := range []string{
		"document title or main topic", "document title", "title here",
		"summary here", "brief summary", "preview", "preview here",
		"summarize the document with at least 600 characters",
		"basic/intermediate/advanced", "relevant industry",
		"brief description of business value",
		"keyword1", "keyword2", "keyword3", "word1", "word2",
		"author1", "author2", "tech1", "tech2", "method1", "method2",
		"tool1", "tool2", "use_case1", "use_case2", "stakeholder1", "stakeholder2",
		"a sentence expressing a concept1", "a sentence expressing a concept2",
		"a sentence expressing a concept3",
	} {
		set[p] = true
	}
	return set
}()

// ToAnalysis converts decoded fields into an Analysis, coercing loose types.
// Technical and business fields are read from nested objects or from the top level.
func ToAnalysis(m map[string]any) types.Analysis {
	var a types.Analysis

	a.Title = asString(m["title"])
	a.Authors = asList(m["authors"])
	a.Summary = asString(m["summary"])
	a.Category = asCategory(m["category"])
	a.Difficulty, _ = types.ParseDifficulty(asString(m["difficulty"]))
	a.Keywords = asList(m["keywords"])
	a.KeyConcepts = asList(m["key_concepts"])
	a.ContentPreview = asString(m["content_preview"])

	tech := nested(m, "technical_details")
	a.Technical.Technologies = asList(tech["technologies"])
	a.Technical.Methodologies = asList(tech["methodologies"])
	a.Technical.Tools = asList(firstPresent(tech, "tools", "tools_mentioned"))
	a.Technical.ComplexityLevel, _ = types.ParseDifficulty(asString(tech["complexity_level"]))

	biz := nested(m, "business_context")
	a.Business.Industry = asList(biz["industry"])
	a.Business.UseCases = asList(biz["use_cases"])
	a.Business.Stakeholders = asList(biz["stakeholders"])
	a.Business.BusinessValue = asString(biz["business_value"])

	return a
}

// nested returns the object under key merged over the top-level fields
func nested(m map[string]any, key string) map[string]any {
	inner, ok := m[key].(map[string]any)
	if !ok {
		return m
	}
	merged := make(map[string]any, len(m)+len(inner))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64, bool:
		s = fmt.Sprint(t)
	case []any:
		s = strings.Join(toStrings(t), ", ")
	}
	s = strings.TrimSpace(s)
	if placeholders[strings.ToLower(s)] {
		return ""
	}
	return s
}

// asList coerces a value into a list, wrapping a bare string
func asList(v any) []string {
	switch t := v.(type) {
	case []any:
		return toStrings(t)
	case string:
		if s := asString(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func toStrings(items []any) []string {
	var out []string
	for _, item := range items {
		var s string
		switch t := item.(type) {
		case string:
			s = t
		case float64, bool:
			s = fmt.Sprint(t)
		case map[string]any:
			if name, ok := t["name"].(string); ok {
				s = name
			}
		}
		s = strings.TrimSpace(s)
		if s != "" && !placeholders[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

// asCategory accepts an exact category or the first valid entry of a list like "AI/Machine Learning"
func asCategory(v any) types.Category {
	s := asString(v)
	if c, ok := types.ParseCategory(s); ok {
		return c
	}
	// an echoed template such as "document category (AI, Machine Learning, ...)"
	if strings.ContainsAny(s, "()") || strings.Contains(s, "...") {
		return ""
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ',' || r == '|' }) {
		if c, ok := types.ParseCategory(part); ok {
			return c
		}
	}
	return ""
}
