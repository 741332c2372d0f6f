package validator

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// categoryRules are checked in order against the filename's words
var categoryRules = []struct {
	words    []string
	category types.Category
}{
	{[]string{"ai", "artificial", "llm", "genai"}, types.CategoryAI},
	{[]string{"machine", "learning", "ml"}, types.CategoryMachineLearning},
	{[]string{"data", "science", "python", "pandas", "statistics"}, types.CategoryDataScience},
	{[]string{"analytics", "excel", "dashboard", "bi"}, types.CategoryAnalytics},
	{[]string{"business", "revenue", "employee", "strategy", "management"}, types.CategoryBusiness},
	{[]string{"research", "paper", "study", "survey"}, types.CategoryResearch},
}

// keywordRules map filename words to display keywords, in output order
var keywordRules = []struct {
	word    string
	keyword string
}{
	{"ai", "AI"},
	{"artificial", "Artificial Intelligence"},
	{"machine", "Machine Learning"},
	{"learning", "Machine Learning"},
	{"ml", "Machine Learning"},
	{"deep", "Deep Learning"},
	{"neural", "Neural Networks"},
	{"llm", "Large Language Models"},
	{"data", "Data Science"},
	{"analytics", "Analytics"},
	{"statistics", "Statistics"},
	{"python", "Python"},
	{"excel", "Excel"},
	{"business", "Business"},
	{"strategy", "Strategy"},
}

// TitleFromFilename strips the extension and turns separators into spaces
func TitleFromFilename(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// filenameWords splits a filename into lowercase alphanumeric words
func filenameWords(filename string) []string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// InferCategory matches whole words of the filename against the category rules
func InferCategory(filename string) types.Category {
	words := make(map[string]bool)
	for _, w := range filenameWords(filename) {
		words[w] = true
	}
	for _, rule := range categoryRules {
		for _, w := range rule.words {
			if words[w] {
				return rule.category
			}
		}
	}
	return types.DefaultCategory
}

// KeywordsFromFilename returns display keywords for recognised filename words
func KeywordsFromFilename(filename string) []string {
	words := make(map[string]bool)
	for _, w := range filenameWords(filename) {
		words[w] = true
	}
	var keywords []string
	seen := make(map[string]bool)
	for _, rule := range keywordRules {
		if words[rule.word] && !seen[rule.keyword] {
			seen[rule.keyword] = true
			keywords = append(keywords, rule.keyword)
		}
	}
	return keywords
}

// FromFilename builds the heuristic analysis used when the service produced nothing.
// It never sets a difficulty, so validation settles on the default.
func FromFilename(filename string) types.Analysis {
	title := TitleFromFilename(filename)
	category := InferCategory(filename)

	a := types.Analysis{
		Title:       title,
		Summary:     "This document provides comprehensive coverage of " + strings.ToLower(title) + " concepts and applications.",
		Category:    category,
		Keywords:    KeywordsFromFilename(filename),
		KeyConcepts: []string{"Core concepts in " + strings.ToLower(string(category))},
		Business:    types.BusinessContext{Industry: []string{"Technology"}},
	}
	a.Normalize()
	return a
}
