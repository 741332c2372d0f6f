package types

// TechnicalDetails holds the technical pass fields
type TechnicalDetails struct {
	Technologies    []string   `json:"technologies"`
	Methodologies   []string   `json:"methodologies"`
	Tools           []string   `json:"tools"`
	ComplexityLevel Difficulty `json:"complexity_level"`
}

// BusinessContext holds the business pass fields
type BusinessContext struct {
	Industry      []string `json:"industry"`
	UseCases      []string `json:"use_cases"`
	Stakeholders  []string `json:"stakeholders"`
	BusinessValue string   `json:"business_value"`
}

// Analysis is the structured content recovered from one or more service responses.
// Every field has a usable zero value; an empty string or nil slice means "not recovered".
type Analysis struct {
	Title          string           `json:"title"`
	Authors        []string         `json:"authors"`
	Summary        string           `json:"summary"`
	Category       Category         `json:"category"`
	Difficulty     Difficulty       `json:"difficulty"`
	Keywords       []string         `json:"keywords"`
	KeyConcepts    []string         `json:"key_concepts"`
	ContentPreview string           `json:"content_preview"`
	Technical      TechnicalDetails `json:"technical_details"`
	Business       BusinessContext  `json:"business_context"`
}

// FieldCount returns the number of distinct fields carrying a value
func (a *Analysis) FieldCount() int {
	n := 0
	for _, s := range []string{a.Title, a.Summary, string(a.Category), string(a.Difficulty),
		a.ContentPreview, string(a.Technical.ComplexityLevel), a.Business.BusinessValue} {
		if s != "" {
			n++
		}
	}
	for _, l := range [][]string{a.Authors, a.Keywords, a.KeyConcepts,
		a.Technical.Technologies, a.Technical.Methodologies, a.Technical.Tools,
		a.Business.Industry, a.Business.UseCases, a.Business.Stakeholders} {
		if len(l) > 0 {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no field was recovered
func (a *Analysis) IsEmpty() bool {
	return a.FieldCount() == 0
}

// Fill copies every field of other that is still empty in a.
// Fields already present in a are kept verbatim.
func (a *Analysis) Fill(other Analysis) {
	fillString(&a.Title, other.Title)
	fillString(&a.Summary, other.Summary)
	fillString(&a.ContentPreview, other.ContentPreview)
	fillString(&a.Business.BusinessValue, other.Business.BusinessValue)
	if a.Category == "" {
		a.Category = other.Category
	}
	if a.Difficulty == "" {
		a.Difficulty = other.Difficulty
	}
	if a.Technical.ComplexityLevel == "" {
		a.Technical.ComplexityLevel = other.Technical.ComplexityLevel
	}
	fillList(&a.Authors, other.Authors)
	fillList(&a.Keywords, other.Keywords)
	fillList(&a.KeyConcepts, other.KeyConcepts)
	fillList(&a.Technical.Technologies, other.Technical.Technologies)
	fillList(&a.Technical.Methodologies, other.Technical.Methodologies)
	fillList(&a.Technical.Tools, other.Technical.Tools)
	fillList(&a.Business.Industry, other.Business.Industry)
	fillList(&a.Business.UseCases, other.Business.UseCases)
	fillList(&a.Business.Stakeholders, other.Business.Stakeholders)
}

// Normalize replaces nil slices with empty ones so the value never serializes as null
func (a *Analysis) Normalize() {
	for _, l := range []*[]string{&a.Authors, &a.Keywords, &a.KeyConcepts,
		&a.Technical.Technologies, &a.Technical.Methodologies, &a.Technical.Tools,
		&a.Business.Industry, &a.Business.UseCases, &a.Business.Stakeholders} {
		if *l == nil {
			*l = []string{}
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillList(dst *[]string, src []string) {
	if len(*dst) == 0 && len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// PassResult is the outcome of one prompt/response cycle over one chunk
type PassResult struct {
	Pass     string
	OK       bool
	Strategy string // parser strategy that produced the result, empty on failure
	Analysis Analysis
	Err      error
}

// ChunkAnalysis merges the pass results of one chunk
type ChunkAnalysis struct {
	ChunkIndex int
	ChunkID    string
	Analysis   Analysis
	// Confidence is successful passes / attempted passes, in [0,1]
	Confidence float64
	Passes     []PassResult
}
