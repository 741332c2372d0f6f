package types

import "strings"

// Category is the fixed set of subject areas a document can belong to
type Category string

const (
	CategoryAI              Category = "AI"
	CategoryMachineLearning Category = "Machine Learning"
	CategoryDataScience     Category = "Data Science"
	CategoryAnalytics       Category = "Analytics"
	CategoryBusiness        Category = "Business"
	CategoryTechnology      Category = "Technology"
	CategoryResearch        Category = "Research"

	// DefaultCategory is used when neither the service nor the filename yields a category
	DefaultCategory = CategoryTechnology
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryAI,
	CategoryMachineLearning,
	CategoryDataScience,
	CategoryAnalytics,
	CategoryBusiness,
	CategoryTechnology,
	CategoryResearch,
}

// ParseCategory converts free text from the generation service into a Category.
// Matching is case-insensitive and ignores surrounding whitespace and punctuation.
func ParseCategory(s string) (Category, bool) {
	s = normalizeLabel(s)
	if s == "" {
		return "", false
	}
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the fixed categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Difficulty is the fixed three-level reading difficulty of a document
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"

	// DefaultDifficulty is used whenever no valid difficulty can be determined
	DefaultDifficulty = DifficultyIntermediate
)

// ParseDifficulty converts a difficulty or complexity label into a Difficulty.
// Complexity levels (basic/intermediate/advanced) are accepted as synonyms.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(normalizeLabel(s)) {
	case "beginner", "basic", "introductory", "easy":
		return DifficultyBeginner, true
	case "intermediate", "medium":
		return DifficultyIntermediate, true
	case "advanced", "expert", "hard":
		return DifficultyAdvanced, true
	}
	return "", false
}

// Valid reports whether d is one of the fixed difficulty levels
func (d Difficulty) Valid() bool {
	return d == DifficultyBeginner || d == DifficultyIntermediate || d == DifficultyAdvanced
}

func normalizeLabel(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'.,;:`)
}
