package parser

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

var (
	pairedReasoningRe = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)
	openReasoningRe   = regexp.MustCompile(`(?i)<(think|thinking|reasoning)>`)
	tagRe             = regexp.MustCompile(`<[^>]+>`)
	fenceRe           = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	trailingCommaRe   = regexp.MustCompile(`,\s*([}\]])`)

	quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// ParseDirect decodes the trimmed response as a JSON object
func ParseDirect(raw string) (map[string]any, bool) {
	return decodeObject(strings.TrimSpace(raw))
}

// ParseCleaned strips reasoning sections, markup tags and code fences, then decodes
func ParseCleaned(raw string) (map[string]any, bool) {
	return decodeObject(StripReasoning(raw))
}

// ParseBraces decodes the span between the first '{' and the last '}'.
// The cleaned text is tried first so braces inside reasoning sections are ignored.
func ParseBraces(raw string) (map[string]any, bool) {
	for _, text := range []string{StripReasoning(raw), raw} {
		if span, ok := braceSpan(text); ok {
			if m, ok := decodeObject(span); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// ParseRepaired applies low-risk repairs to the brace span and decodes it
func ParseRepaired(raw string) (map[string]any, bool) {
	for _, text := range []string{StripReasoning(raw), raw} {
		span, ok := braceSpan(text)
		if !ok {
			continue
		}
		if m, ok := decodeObject(Repair(span)); ok {
			return m, true
		}
	}
	return nil, false
}

// StripReasoning removes <think>-style sections and any remaining tags or code fences.
// An unclosed reasoning marker is cut up to the first '{' that follows it,
// or to the end of the text when no brace follows.
func StripReasoning(raw string) string {
	text := pairedReasoningRe.ReplaceAllString(raw, "")

	if loc := openReasoningRe.FindStringIndex(text); loc != nil {
		if brace := strings.IndexByte(text[loc[1]:], '{'); brace >= 0 {
			text = text[:loc[0]] + text[loc[1]+brace:]
		} else {
			text = text[:loc[0]]
		}
	}

	text = tagRe.ReplaceAllString(text, "")
	text = fenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Repair removes trailing commas before closing brackets and normalizes typographic quotes
func Repair(s string) string {
	s = quoteReplacer.Replace(s)
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func braceSpan(text string) (string, bool) {
	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first < 0 || last <= first {
		return "", false
	}
	return text[first : last+1], true
}

func decodeObject(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
