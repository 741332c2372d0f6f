package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lonardonifabio/tech-documents/internal/fsutil"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// Unreadable is a PDF that exists but could not be hashed during a scan.
// Its registry entry and corpus record are left as they are.
type Unreadable struct {
	RelPath string
	Name    string
	Err     error
}

// Discover lists the PDFs directly inside dir (no recursion) and hashes them.
// RelPath is dir's path relative to baseDir joined with the filename, slash
// separated; when dir lies outside baseDir it falls back to documents/<name>.
//
// Entries that vanish during the scan are ignored. Entries that exist but cannot
// be read, or are not regular files after resolving symlinks, are returned as
// Unreadable so callers do not mistake them for deletions.
func Discover(dir, baseDir string) ([]types.SourceFile, []Unreadable, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSourceDirMissing, dir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat documents directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrSourceDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read documents directory: %w", err)
	}

	prefix := relPrefix(dir, baseDir)
	files := make([]types.SourceFile, 0, len(entries))
	var unreadable []Unreadable
	for _, e := range entries {
		if e.IsDir() || !IsPDF(e.Name()) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		rel := path.Join(prefix, e.Name())
		skip := func(err error) {
			unreadable = append(unreadable, Unreadable{RelPath: rel, Name: e.Name(), Err: err})
		}

		// os.Stat follows symlinks; opening a FIFO or device would block
		fi, err := os.Stat(full)
		if errors.Is(err, fs.ErrNotExist) {
			if _, lerr := os.Lstat(full); errors.Is(lerr, fs.ErrNotExist) {
				continue
			}
			skip(fmt.Errorf("dangling symlink: %w", err))
			continue
		}
		if err != nil {
			skip(err)
			continue
		}
		if fi.IsDir() {
			continue
		}
		if !fi.Mode().IsRegular() {
			skip(fmt.Errorf("%w: not a regular file (%s)", ErrUnreadableFile, fi.Mode().Type()))
			continue
		}

		hash, err := fsutil.HashFile(full)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			skip(err)
			continue
		}
		abs, err := filepath.Abs(full)
		if err != nil {
			abs = full
		}
		files = append(files, types.SourceFile{
			Path:    abs,
			RelPath: rel,
			Name:    e.Name(),
			Hash:    hash,
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	sort.Slice(unreadable, func(i, j int) bool { return unreadable[i].Name < unreadable[j].Name })
	return files, unreadable, nil
}

// keys returns the registry keys of unreadable entries
func keys(unreadable []Unreadable) []string {
	out := make([]string, len(unreadable))
	for i, u := range unreadable {
		out[i] = u.RelPath
	}
	return out
}

// IsPDF reports whether name has a .pdf extension, in any case
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf") && !strings.HasPrefix(name, ".")
}

func relPrefix(dir, baseDir string) string {
	absDir, err1 := filepath.Abs(dir)
	absBase, err2 := filepath.Abs(baseDir)
	if err1 != nil || err2 != nil {
		return "documents"
	}
	rel, err := filepath.Rel(absBase, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "documents"
	}
	return filepath.ToSlash(rel)
}
