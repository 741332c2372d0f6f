package parser

import (
	"regexp"
	"strings"
)

// fieldSpec describes how one field is located in unstructured text
type fieldSpec struct {
	key      string
	list     bool
	patterns []*regexp.Regexp
}

var (
	quotedItemRe = regexp.MustCompile(`"([^"]*)"`)

	summarySentenceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)This document[^.]*\.`),
		regexp.MustCompile(`(?i)The document[^.]*\.`),
		regexp.MustCompile(`(?i)It covers[^.]*\.`),
		regexp.MustCompile(`(?i)This paper[^.]*\.`),
		regexp.MustCompile(`(?i)The paper[^.]*\.`),
	}

	fieldSpecs = []fieldSpec{
		scalarField("title"),
		scalarField("summary"),
		scalarField("category"),
		scalarField("difficulty"),
		scalarField("content_preview"),
		scalarField("complexity_level"),
		scalarField("industry"),
		scalarField("business_value"),
		listField("keywords"),
		listField("authors"),
		listField("key_concepts"),
		listField("technologies"),
		listField("methodologies"),
		listField("tools"),
		listField("use_cases"),
		listField("stakeholders"),
	}
)

// labelPattern matches a key written as snake_case or as words ("content preview")
func labelPattern(key string) string {
	return strings.ReplaceAll(regexp.QuoteMeta(key), "_", "[ _]")
}

// scalarField tries, in order: quoted JSON key, bare key with quoted value,
// "Label: value" up to a comma or brace, and "Label: rest of line"
func scalarField(key string) fieldSpec {
	label := labelPattern(key)
	return fieldSpec{
		key: key,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)"` + regexp.QuoteMeta(key) + `"\s*:\s*"([^"]*)"`),
			regexp.MustCompile(`(?i)\b` + label + `\s*[:=]\s*"([^"]*)"`),
			regexp.MustCompile(`(?i)\b` + label + `\s*:\s*([^\n,}]*)`),
			regexp.MustCompile(`(?i)\b` + label + `:\s*([^\n]*)`),
		},
	}
}

// listField matches a bracketed array after a quoted key, a bare key or a label
func listField(key string) fieldSpec {
	label := labelPattern(key)
	return fieldSpec{
		key:  key,
		list: true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?is)"` + regexp.QuoteMeta(key) + `"\s*:\s*\[(.*?)\]`),
			regexp.MustCompile(`(?is)\b` + label + `\s*[:=]\s*\[(.*?)\]`),
		},
	}
}

// ParseFields recovers individual fields with label patterns when no JSON object can be decoded.
// The first matching pattern wins for each field.
func ParseFields(raw string) (map[string]any, bool) {
	text := StripReasoning(raw)
	if text == "" {
		text = raw
	}

	fields := make(map[string]any)
	for _, spec := range fieldSpecs {
		for _, re := range spec.patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if spec.list {
				if items := splitItems(m[1]); len(items) > 0 {
					fields[spec.key] = items
					break
				}
				continue
			}
			if v := cleanValue(m[1]); v != "" {
				fields[spec.key] = v
				break
			}
		}
	}

	if _, ok := fields["summary"]; !ok {
		for _, re := range summarySentenceRes {
			if s := re.FindString(text); s != "" {
				fields["summary"] = strings.TrimSpace(s)
				break
			}
		}
	}

	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// splitItems reads quoted strings from an array body, falling back to comma separation
func splitItems(body string) []any {
	var items []any
	for _, m := range quotedItemRe.FindAllStringSubmatch(body, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			items = append(items, v)
		}
	}
	if len(items) > 0 {
		return items
	}
	for _, part := range strings.Split(body, ",") {
		if v := cleanValue(part); v != "" {
			items = append(items, v)
		}
	}
	return items
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'*` \t")
}
