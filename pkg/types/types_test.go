package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"AI", CategoryAI, true},
		{"machine learning", CategoryMachineLearning, true},
		{"  Data Science. ", CategoryDataScience, true},
		{`"Research"`, CategoryResearch, true},
		{"Cooking", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in   string
		want Difficulty
		ok   bool
	}{
		{"Beginner", DifficultyBeginner, true},
		{"basic", DifficultyBeginner, true},
		{"INTERMEDIATE", DifficultyIntermediate, true},
		{"advanced", DifficultyAdvanced, true},
		{"basic/intermediate/advanced", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDifficulty(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalysisFill(t *testing.T) {
	a := Analysis{Title: "First", Keywords: []string{"go"}}
	a.Fill(Analysis{
		Title:    "Second",
		Summary:  "A summary",
		Keywords: []string{"rust"},
		Technical: TechnicalDetails{
			Tools:           []string{"docker"},
			ComplexityLevel: DifficultyAdvanced,
		},
	})

	assert.Equal(t, "First", a.Title, "present fields are kept")
	assert.Equal(t, "A summary", a.Summary)
	assert.Equal(t, []string{"go"}, a.Keywords)
	assert.Equal(t, []string{"docker"}, a.Technical.Tools)
	assert.Equal(t, DifficultyAdvanced, a.Technical.ComplexityLevel)
	assert.Equal(t, 5, a.FieldCount())
}

func TestAnalysisNormalize(t *testing.T) {
	var a Analysis
	assert.True(t, a.IsEmpty())
	a.Normalize()

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
}

func TestDocumentChunkOwnContent(t *testing.T) {
	c := NewDocumentChunk(1, "c d e f", 4, 6, 2)
	assert.True(t, c.HasOverlap)
	assert.Equal(t, "e f", c.OwnContent())
	assert.Len(t, c.ID, 16)
	require.NoError(t, c.Validate())

	first := NewDocumentChunk(0, "a b", 0, 2, 0)
	assert.False(t, first.HasOverlap)
	assert.Equal(t, "a b", first.OwnContent())
}

func TestDocumentRecordExtraRoundTrip(t *testing.T) {
	in := `{"id":"x","filename":"a.pdf","title":"A & B <draft>","preview_image":"previews/a.png","category":"AI","keywords":["k"]}`

	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(in), &rec))
	assert.Equal(t, "a.pdf", rec.Filename)
	assert.Equal(t, CategoryAI, rec.Category)
	require.Contains(t, rec.Extra, "preview_image")
	assert.NotContains(t, rec.Extra, "title")

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `"preview_image":"previews/a.png"`)
	assert.Contains(t, s, `"title":"A & B <draft>"`, "HTML characters are written verbatim")
	assert.True(t, strings.Index(s, `"confidence_score"`) < strings.Index(s, `"preview_image"`),
		"extra fields follow the known ones")

	var again DocumentRecord
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, rec, again)
}

func TestDocumentRecordValidate(t *testing.T) {
	rec := DocumentRecord{
		Filename:   "a.pdf",
		Category:   CategoryBusiness,
		Difficulty: DifficultyBeginner,
		Keywords:   []string{"Business"},
	}
	require.NoError(t, rec.Validate())

	rec.Category = "Cooking"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidCategory)

	rec.Category = CategoryBusiness
	rec.Keywords = nil
	assert.ErrorIs(t, rec.Validate(), ErrInvalidKeywords)
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, RecordID("documents/a.pdf"), RecordID("documents/a.pdf"))
	assert.NotEqual(t, RecordID("documents/a.pdf"), RecordID("documents/b.pdf"))
	assert.Len(t, RecordID("documents/a.pdf"), 32)
}
