package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/lonardonifabio/tech-documents/internal/fsutil"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// ErrCorruptRegistry is returned by Load when the registry file cannot be decoded.
// The registry returned alongside it is empty and usable.
var ErrCorruptRegistry = errors.New("registry file is corrupt")

// Status explains why a file is or is not scheduled
type Status string

const (
	StatusNew           Status = "new"
	StatusChanged       Status = "changed"
	StatusUnchanged     Status = "unchanged"
	StatusForced        Status = "forced"
	StatusMissingRecord Status = "missing-record"
)

// Item is one discovered file with its planned status
type Item struct {
	File   types.SourceFile
	Status Status
}

// Deletion is a registered path whose file no longer exists
type Deletion struct {
	Key      string // registry key
	Filename string
}

// Plan partitions one scan into work to do and work to skip
type Plan struct {
	Process []Item
	Skip    []Item
	Deleted []Deletion
}

// Empty reports whether the plan changes nothing
func (p *Plan) Empty() bool {
	return len(p.Process) == 0 && len(p.Deleted) == 0
}

// Count returns the number of items to process with the given status
func (p *Plan) Count(s Status) int {
	n := 0
	for _, it := range p.Process {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Registry maps a document's relative path to the hash it had when last processed
type Registry struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// New returns an empty registry persisted at path
func New(path string) *Registry {
	return &Registry{path: path, entries: make(map[string]string)}
}

// Load reads the registry at path. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	r := New(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return r, fmt.Errorf("%w: %v", ErrCorruptRegistry, err)
	}
	if entries != nil {
		r.entries = entries
	}
	return r, nil
}

// Path returns the file the registry is saved to
func (r *Registry) Path() string { return r.path }

// Len returns the number of registered documents
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Lookup returns the registered hash for key
func (r *Registry) Lookup(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[key]
	return h, ok
}

// Plan decides which files need processing.
//
// A file is processed when it is unregistered, its hash differs from the registered
// one, force is set, or hasRecord (when non-nil) reports that the corpus lost its
// record. Registered keys with no discovered file are reported as deletions,
// except the keep keys: files that exist but could not be read this scan.
func (r *Registry) Plan(files []types.SourceFile, force bool, hasRecord func(filename string) bool, keep ...string) *Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan := &Plan{}
	seen := make(map[string]bool, len(files)+len(keep))
	for _, key := range keep {
		seen[key] = true
	}
	for _, f := range files {
		seen[f.RelPath] = true

		registered, ok := r.entries[f.RelPath]
		var status Status
		switch {
		case force:
			status = StatusForced
		case !ok:
			status = StatusNew
		case registered != f.Hash:
			status = StatusChanged
		case hasRecord != nil && !hasRecord(f.Name):
			status = StatusMissingRecord
		default:
			plan.Skip = append(plan.Skip, Item{File: f, Status: StatusUnchanged})
			continue
		}
		plan.Process = append(plan.Process, Item{File: f, Status: status})
	}

	for key := range r.entries {
		if !seen[key] {
			plan.Deleted = append(plan.Deleted, Deletion{Key: key, Filename: path.Base(key)})
		}
	}
	sort.Slice(plan.Deleted, func(i, j int) bool { return plan.Deleted[i].Key < plan.Deleted[j].Key })
	return plan
}

// MarkProcessed records the hash f was processed with
func (r *Registry) MarkProcessed(f types.SourceFile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[f.RelPath] = f.Hash
}

// Forget drops a registry entry
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Snapshot returns a copy of the entries
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Save writes the registry with sorted keys. Nothing is written when the file
// already holds the same bytes; the result reports whether it was written.
func (r *Registry) Save() (bool, error) {
	r.mu.Lock()
	data, err := json.MarshalIndent(r.entries, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("marshal registry: %w", err)
	}

	written, err := fsutil.WriteIfChanged(r.path, append(data, '\n'))
	if err != nil {
		return false, fmt.Errorf("save registry: %w", err)
	}
	return written, nil
}
