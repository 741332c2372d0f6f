package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

func src(name, hash string) types.SourceFile {
	return types.SourceFile{Name: name, RelPath: "documents/" + name, Hash: hash}
}

func TestPlan(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "processed_files.json"))
	reg.MarkProcessed(src("same.pdf", "h1"))
	reg.MarkProcessed(src("edited.pdf", "old"))
	reg.MarkProcessed(src("gone.pdf", "h3"))

	files := []types.SourceFile{
		src("same.pdf", "h1"),
		src("edited.pdf", "new"),
		src("fresh.pdf", "h4"),
	}

	t.Run("incremental", func(t *testing.T) {
		plan := reg.Plan(files, false, nil)

		require.Len(t, plan.Process, 2)
		assert.Equal(t, "edited.pdf", plan.Process[0].File.Name)
		assert.Equal(t, StatusChanged, plan.Process[0].Status)
		assert.Equal(t, "fresh.pdf", plan.Process[1].File.Name)
		assert.Equal(t, StatusNew, plan.Process[1].Status)

		require.Len(t, plan.Skip, 1)
		assert.Equal(t, "same.pdf", plan.Skip[0].File.Name)

		assert.Equal(t, []Deletion{{Key: "documents/gone.pdf", Filename: "gone.pdf"}}, plan.Deleted)
		assert.False(t, plan.Empty())
		assert.Equal(t, 1, plan.Count(StatusNew))
	})

	t.Run("force", func(t *testing.T) {
		plan := reg.Plan(files, true, nil)
		assert.Len(t, plan.Process, 3)
		assert.Empty(t, plan.Skip)
		assert.Equal(t, 3, plan.Count(StatusForced))
		assert.Len(t, plan.Deleted, 1)
	})

	t.Run("missing record is requeued", func(t *testing.T) {
		plan := reg.Plan([]types.SourceFile{src("same.pdf", "h1")}, false, func(string) bool { return false })
		require.Len(t, plan.Process, 1)
		assert.Equal(t, StatusMissingRecord, plan.Process[0].Status)
	})

	t.Run("kept keys are not deletions", func(t *testing.T) {
		plan := reg.Plan(files, false, nil, "documents/gone.pdf")
		assert.Empty(t, plan.Deleted)
		assert.Len(t, plan.Process, 2)
	})

	t.Run("nothing to do", func(t *testing.T) {
		plan := reg.Plan([]types.SourceFile{src("same.pdf", "h1"), src("edited.pdf", "old"), src("gone.pdf", "h3")}, false, nil)
		assert.True(t, plan.Empty())
	})
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "processed_files.json")
	reg := New(path)
	reg.MarkProcessed(src("b.pdf", "2"))
	reg.MarkProcessed(src("a.pdf", "1"))

	written, err := reg.Save()
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"documents/a.pdf\": \"1\",\n  \"documents/b.pdf\": \"2\"\n}\n", string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	h, ok := loaded.Lookup("documents/b.pdf")
	assert.True(t, ok)
	assert.Equal(t, "2", h)

	written, err = loaded.Save()
	require.NoError(t, err)
	assert.False(t, written, "unchanged registry must not be rewritten")

	loaded.Forget("documents/a.pdf")
	written, err = loaded.Save()
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, map[string]string{"documents/b.pdf": "2"}, loaded.Snapshot())
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		reg, err := Load(filepath.Join(t.TempDir(), "none.json"))
		require.NoError(t, err)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("<<<<<<< HEAD\n{"), 0o644))

		reg, err := Load(path)
		assert.ErrorIs(t, err, ErrCorruptRegistry)
		require.NotNil(t, reg)
		assert.Equal(t, 0, reg.Len())
		assert.Equal(t, path, reg.Path())
	})

	t.Run("null", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "null.json")
		require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

		reg, err := Load(path)
		require.NoError(t, err)
		reg.MarkProcessed(src("x.pdf", "1"))
		assert.Equal(t, 1, reg.Len())
	})
}
