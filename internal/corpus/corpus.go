package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/lonardonifabio/tech-documents/internal/fsutil"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// ErrNoPaths is returned by New when no output location is given
var ErrNoPaths = errors.New("corpus needs at least one path")

// Store reads the corpus from its primary location and writes it to every location
type Store struct {
	paths  []string
	logger *slog.Logger
}

// New creates a store. The first path is read; all paths are written.
func New(logger *slog.Logger, paths ...string) (*Store, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{paths: paths, logger: logger}, nil
}

// Paths returns the locations the corpus is written to
func (s *Store) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Load returns the persisted records, deduplicated by filename.
// Conflict markers are stripped before decoding. A file that still cannot be
// decoded yields an empty corpus and a warning; only I/O errors are returned.
func (s *Store) Load() ([]types.DocumentRecord, error) {
	data, err := os.ReadFile(s.paths[0])
	if errors.Is(err, fs.ErrNotExist) {
		return []types.DocumentRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	if HasConflictMarkers(data) {
		s.logger.Warn("merge conflict markers found in corpus, stripping", "path", s.paths[0])
		data = Sanitize(data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []types.DocumentRecord{}, nil
	}

	var records []types.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("corpus could not be decoded, starting empty", "path", s.paths[0], "error", err)
		return []types.DocumentRecord{}, nil
	}
	return Dedupe(records), nil
}

// Save writes records sorted by filename to every path.
// Files already holding identical bytes are left untouched; the result reports
// whether any file was written.
func (s *Store) Save(records []types.DocumentRecord) (bool, error) {
	data, err := Encode(records)
	if err != nil {
		return false, err
	}

	changed := false
	for _, p := range s.paths {
		written, err := fsutil.WriteIfChanged(p, data)
		if err != nil {
			return changed, fmt.Errorf("save corpus: %w", err)
		}
		if written {
			s.logger.Debug("corpus written", "path", p, "documents", len(records))
			changed = true
		}
	}
	return changed, nil
}

// Encode renders records as the corpus file: an indented JSON array sorted by filename
func Encode(records []types.DocumentRecord) ([]byte, error) {
	sorted := append([]types.DocumentRecord{}, records...)
	SortByFilename(sorted)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sorted); err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}
	return buf.Bytes(), nil
}

// Merge computes (existing - removed - superseded) + fresh, sorted by filename.
// A record is superseded when fresh holds a record with the same filename.
func Merge(existing []types.DocumentRecord, removed []string, fresh []types.DocumentRecord) []types.DocumentRecord {
	drop := make(map[string]bool, len(removed)+len(fresh))
	for _, name := range removed {
		drop[name] = true
	}
	for _, r := range fresh {
		drop[r.Filename] = true
	}

	out := make([]types.DocumentRecord, 0, len(existing)+len(fresh))
	for _, r := range existing {
		if !drop[r.Filename] {
			out = append(out, r)
		}
	}
	out = append(out, Dedupe(fresh)...)
	SortByFilename(out)
	return out
}

// Dedupe keeps the first record for each filename
func Dedupe(records []types.DocumentRecord) []types.DocumentRecord {
	seen := make(map[string]bool, len(records))
	out := make([]types.DocumentRecord, 0, len(records))
	for _, r := range records {
		if seen[r.Filename] {
			continue
		}
		seen[r.Filename] = true
		out = append(out, r)
	}
	return out
}

// SortByFilename orders records in place
func SortByFilename(records []types.DocumentRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Filename < records[j].Filename })
}

// Find returns the record for filename
func Find(records []types.DocumentRecord, filename string) (types.DocumentRecord, bool) {
	for _, r := range records {
		if r.Filename == filename {
			return r, true
		}
	}
	return types.DocumentRecord{}, false
}

// HasConflictMarkers reports whether data contains a merge conflict start marker
func HasConflictMarkers(data []byte) bool {
	return bytes.HasPrefix(data, []byte("<<<<<<< ")) || bytes.Contains(data, []byte("\n<<<<<<< "))
}

// Sanitize strips merge conflict sections: every line from a "<<<<<<< " marker
// through the matching ">>>>>>> " marker is dropped, as are stray "=======" lines.
func Sanitize(data []byte) []byte {
	var out []string
	inConflict := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "<<<<<<< "):
			inConflict = true
		case strings.HasPrefix(line, ">>>>>>> "):
			inConflict = false
		case strings.HasPrefix(line, "======="):
		case !inConflict:
			out = append(out, line)
		}
	}
	return []byte(strings.Join(out, "\n"))
}
