package types

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// SourceFile is a PDF discovered in the documents directory during a scan
type SourceFile struct {
	Path    string // absolute path on disk
	RelPath string // slash-separated path relative to the base directory, e.g. documents/x.pdf
	Name    string // base filename
	Hash    string // hex content hash
	ModTime time.Time
	Size    int64
}

// DocumentRecord is the persisted unit of the corpus.
// Field order matches the JSON document consumed by the site.
type DocumentRecord struct {
	ID                  string     `json:"id"`
	Filename            string     `json:"filename"`
	Title               string     `json:"title"`
	Authors             []string   `json:"authors"`
	Filepath            string     `json:"filepath"`
	UploadDate          string     `json:"upload_date"`
	FileSize            int64      `json:"file_size"`
	Summary             string     `json:"summary"`
	Keywords            []string   `json:"keywords"`
	KeyConcepts         []string   `json:"key_concepts"`
	Category            Category   `json:"category"`
	Difficulty          Difficulty `json:"difficulty"`
	ContentPreview      string     `json:"content_preview"`
	TargetAudience      string     `json:"target_audience"`
	Industry            []string   `json:"industry"`
	BusinessFunctions   []string   `json:"business_functions"`
	Companies           []string   `json:"companies"`
	Technologies        []string   `json:"technologies"`
	Processes           []string   `json:"processes"`
	TechnicalTerms      []string   `json:"technical_terms"`
	Methodologies       []string   `json:"methodologies"`
	ToolsMentioned      []string   `json:"tools_mentioned"`
	Prerequisites       []string   `json:"prerequisites"`
	LearningObjectives  []string   `json:"learning_objectives"`
	UseCases            []string   `json:"use_cases"`
	BenefitsMentioned   []string   `json:"benefits_mentioned"`
	ChallengesAddressed []string   `json:"challenges_addressed"`
	BestPractices       []string   `json:"best_practices"`
	QuestionsAndAnswers []string   `json:"questions_and_answers"`
	ConfidenceScore     float64    `json:"confidence_score"`

	// Extra keeps fields written by other tools (preview images, etc.) so they survive a rewrite
	Extra map[string]json.RawMessage `json:"-"`
}

// documentRecordJSON has the same fields as DocumentRecord without its JSON methods
type documentRecordJSON DocumentRecord

var knownRecordFields = func() map[string]bool {
	known := make(map[string]bool)
	t := reflect.TypeOf(documentRecordJSON{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			known[name] = true
		}
	}
	return known
}()

// MarshalJSON writes the known fields in declaration order followed by Extra in key order.
// HTML characters are not escaped so titles and summaries stay readable in the file.
func (r DocumentRecord) MarshalJSON() ([]byte, error) {
	base, err := marshalNoEscape(documentRecordJSON(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if !knownRecordFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		name, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the known fields and collects the rest into Extra
func (r *DocumentRecord) UnmarshalJSON(data []byte) error {
	var base documentRecordJSON
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if knownRecordFields[k] {
			delete(all, k)
		}
	}
	*r = DocumentRecord(base)
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RecordID derives the stable record id from the document's relative path
func RecordID(relPath string) string {
	sum := md5.Sum([]byte(relPath))
	return hex.EncodeToString(sum[:])
}

// FormatUploadDate renders a modification time the way the corpus stores it
func FormatUploadDate(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

// Validate checks the invariants every persisted record must satisfy
func (r *DocumentRecord) Validate() error {
	if r.Filename == "" {
		return ErrMissingFilename
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDifficulty, r.Difficulty)
	}
	if len(r.Keywords) == 0 || len(r.Keywords) > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidKeywords, len(r.Keywords))
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return ErrInvalidScore
	}
	return nil
}
