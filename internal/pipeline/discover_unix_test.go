//go:build unix

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_SpecialFiles(t *testing.T) {
	base := t.TempDir()
	docs := filepath.Join(base, "documents")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.pdf"), []byte("a"), 0o644))
	require.NoError(t, syscall.Mkfifo(filepath.Join(docs, "pipe.pdf"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(docs, "a.pdf"), filepath.Join(docs, "link.pdf")))
	require.NoError(t, os.Symlink(filepath.Join(base, "missing.pdf"), filepath.Join(docs, "dangling.pdf")))

	files, unreadable, err := Discover(docs, base)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, "link.pdf", files[1].Name)
	assert.Equal(t, files[0].Hash, files[1].Hash)

	require.Len(t, unreadable, 2)
	assert.Equal(t, "dangling.pdf", unreadable[0].Name)
	assert.Equal(t, "pipe.pdf", unreadable[1].Name)
	assert.ErrorIs(t, unreadable[1].Err, ErrUnreadableFile)
	assert.Equal(t, "documents/pipe.pdf", unreadable[1].RelPath)
}

func TestRun_UnreadableFileKeepsRecord(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a", "b.pdf": "b"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Len(t, f.records(t), 2)
	corpusBefore := f.read(t, "data/documents.json")
	registryBefore := f.read(t, "data/processed_files.json")

	// a.pdf still exists but can no longer be opened as a regular file
	path := filepath.Join(f.base, "documents", "a.pdf")
	require.NoError(t, os.Remove(path))
	require.NoError(t, syscall.Mkfifo(path, 0o644))

	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDeleted)
	assert.Equal(t, 0, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesUnreadable)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "a.pdf")
	assert.False(t, stats.CorpusChanged)
	assert.False(t, stats.RegistryChanged)

	assert.Equal(t, corpusBefore, f.read(t, "data/documents.json"))
	assert.Equal(t, registryBefore, f.read(t, "data/processed_files.json"))

	var registry map[string]string
	require.NoError(t, json.Unmarshal(registryBefore, &registry))
	assert.Contains(t, registry, "documents/a.pdf")

	plan, err := p.Plan(false)
	require.NoError(t, err)
	assert.Empty(t, plan.Deleted)
	assert.Empty(t, plan.Process)
}

func TestRun_PermissionDeniedKeepsRecord(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	f := newFixture(t, map[string]string{"a.pdf": "a", "b.pdf": "b"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	path := filepath.Join(f.base, "documents", "a.pdf")
	require.NoError(t, os.Chmod(path, 0))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDeleted)
	assert.Equal(t, 1, stats.FilesUnreadable)
	assert.Len(t, f.records(t), 2)
}
