package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonardonifabio/tech-documents/internal/config"
	"github.com/lonardonifabio/tech-documents/internal/generator"
	"github.com/lonardonifabio/tech-documents/internal/hooks"
	"github.com/lonardonifabio/tech-documents/internal/logger"
	"github.com/lonardonifabio/tech-documents/internal/storage"
	"github.com/lonardonifabio/tech-documents/internal/tracker"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

const fullResponse = `{"title": "Deep Learning Handbook", "authors": ["Ada Lovelace"],
"summary": "This document explains neural networks and how to train them on large datasets.",
"category": "Deep Learning", "difficulty": "Advanced",
"keywords": ["neural networks", "training"], "key_concepts": ["backpropagation"],
"technologies": ["PyTorch"], "methodologies": ["supervised learning"], "tools": ["Jupyter"],
"complexity_level": "advanced", "industry": "Technology", "use_cases": ["image recognition"]}`

// mockGenerator implements generator.Generator for testing
type mockGenerator struct {
	available bool
	response  string
	calls     atomic.Int32
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, _ generator.Options) (string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !m.available {
		return "", generator.ErrProviderFailed
	}
	return m.response, nil
}

func (m *mockGenerator) IsAvailable(context.Context) bool          { return m.available }
func (m *mockGenerator) EnsureModelAvailable(context.Context) bool { return m.available }
func (m *mockGenerator) Provider() string                         { return "mock" }
func (m *mockGenerator) Model() string                            { return "mock-v1" }
func (m *mockGenerator) Close() error                             { return nil }

// mockExtractor returns canned text per filename
type mockExtractor struct {
	texts map[string]string
	mu    sync.Mutex
	seen  []string
}

func (m *mockExtractor) Extract(_ context.Context, path string, _ int) (string, error) {
	name := filepath.Base(path)
	m.mu.Lock()
	m.seen = append(m.seen, name)
	m.mu.Unlock()
	if text, ok := m.texts[name]; ok {
		return text, nil
	}
	return "", errors.New("not a pdf")
}

func (m *mockExtractor) Name() string { return "mock" }

type countingHook struct {
	events []hooks.Event
}

func (c *countingHook) Name() string { return "counting" }

func (c *countingHook) AfterWrite(_ context.Context, ev hooks.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type fixture struct {
	base string
	cfg  config.Config
	gen  *mockGenerator
	ext  *mockExtractor
}

func newFixture(t *testing.T, pdfs map[string]string) *fixture {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "documents"), 0o755))

	f := &fixture{
		base: base,
		gen:  &mockGenerator{available: true, response: fullResponse},
		ext:  &mockExtractor{texts: map[string]string{}},
	}
	for name, content := range pdfs {
		f.writePDF(t, name, content)
		f.ext.texts[name] = "neural networks are trained with gradient descent on large labelled datasets"
	}

	cfg := config.Default()
	cfg.BaseDir = base
	cfg.Chunking.ChunkSize = 50
	cfg.Chunking.Overlap = 5
	cfg.Retry.MaxRetries = 1
	f.cfg = cfg
	return f
}

func (f *fixture) writePDF(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.base, "documents", name), []byte(content), 0o644))
}

func (f *fixture) pipeline(d Deps) *Pipeline {
	d.Config = f.cfg
	if d.Generator == nil {
		d.Generator = f.gen
	}
	if d.Extractor == nil {
		d.Extractor = f.ext
	}
	d.Logger = logger.Discard()
	return New(d)
}

func (f *fixture) read(t *testing.T, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.base, rel))
	require.NoError(t, err)
	return data
}

func (f *fixture) records(t *testing.T) []types.DocumentRecord {
	t.Helper()
	var recs []types.DocumentRecord
	require.NoError(t, json.Unmarshal(f.read(t, "data/documents.json"), &recs))
	return recs
}

func TestRun_FirstRunThenIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{"b.pdf": "bbb", "a.pdf": "aaa"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesDiscovered)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 0, stats.FilesSkipped)
	assert.Equal(t, 2, stats.Records)
	assert.True(t, stats.CorpusChanged)
	assert.True(t, stats.RegistryChanged)
	assert.Equal(t, 2, stats.Methods["multi-pass"])

	recs := f.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "a.pdf", recs[0].Filename, "corpus sorted by filename")
	assert.Equal(t, "documents/a.pdf", recs[0].Filepath)
	assert.Equal(t, types.RecordID("documents/a.pdf"), recs[0].ID)
	assert.Equal(t, "Deep Learning Handbook", recs[0].Title)
	assert.Equal(t, 1.0, recs[0].ConfidenceScore)

	corpusBytes := f.read(t, "data/documents.json")
	assert.Equal(t, corpusBytes, f.read(t, "dist/data/documents.json"), "both corpus copies identical")
	registryBytes := f.read(t, "data/processed_files.json")

	var registry map[string]string
	require.NoError(t, json.Unmarshal(registryBytes, &registry))
	assert.Len(t, registry, 2)
	assert.Contains(t, registry, "documents/a.pdf")

	calls := f.gen.calls.Load()
	stats, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesProcessed)
	assert.Equal(t, 2, stats.FilesSkipped)
	assert.False(t, stats.CorpusChanged)
	assert.False(t, stats.RegistryChanged)
	assert.Equal(t, calls, f.gen.calls.Load(), "no service calls for unchanged files")

	assert.Equal(t, corpusBytes, f.read(t, "data/documents.json"))
	assert.Equal(t, registryBytes, f.read(t, "data/processed_files.json"))
}

func TestRun_ChangeDetection(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "v1", "b.pdf": "v1"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	f.writePDF(t, "a.pdf", "v2")
	f.ext.seen = nil

	plan, err := p.Plan(false)
	require.NoError(t, err)
	require.Len(t, plan.Process, 1)
	assert.Equal(t, tracker.StatusChanged, plan.Process[0].Status)

	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, []string{"a.pdf"}, f.ext.seen)
	assert.Len(t, f.records(t), 2, "changed record replaced, not duplicated")

	stats, err = p.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesProcessed)
}

func TestRun_Deletion(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a", "b.pdf": "b"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.base, "documents", "b.pdf")))
	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 0, stats.FilesProcessed)
	assert.True(t, stats.CorpusChanged)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.pdf", recs[0].Filename)

	var registry map[string]string
	require.NoError(t, json.Unmarshal(f.read(t, "data/processed_files.json"), &registry))
	assert.NotContains(t, registry, "documents/b.pdf")
}

func TestRun_MissingRecordIsRebuilt(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.base, "data", "documents.json"), []byte("[]\n"), 0o644))

	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Len(t, f.records(t), 1)
}

func TestRun_ServiceUnavailable(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	f.gen.available = false
	p := f.pipeline(Deps{})

	_, err := p.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.True(t, IsSetupError(err))

	_, statErr := os.Stat(filepath.Join(f.base, "data", "documents.json"))
	assert.True(t, os.IsNotExist(statErr), "nothing written on setup failure")
	_, statErr = os.Stat(filepath.Join(f.base, "data", "processed_files.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_DegradedHeuristicRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.writePDF(t, "intro_to_machine_learning.pdf", "%PDF-broken")
	f.gen.available = false
	p := f.pipeline(Deps{})

	stats, err := p.Run(context.Background(), RunOptions{AllowDegraded: true})
	require.NoError(t, err)
	assert.True(t, stats.Degraded)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 1, stats.Methods["heuristic"])
	assert.Equal(t, int32(0), f.gen.calls.Load())

	recs := f.records(t)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "intro to machine learning", rec.Title)
	assert.Equal(t, types.CategoryMachineLearning, rec.Category)
	assert.Equal(t, types.DifficultyIntermediate, rec.Difficulty)
	assert.Contains(t, rec.Keywords, "Machine Learning")
	assert.Equal(t, 0.0, rec.ConfidenceScore)
	assert.NoError(t, rec.Validate())
}

func TestRun_NothingToDoNeedsNoService(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	p := f.pipeline(Deps{})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	f.gen.available = false
	stats, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.False(t, stats.Degraded)
}

func TestRun_SourceDirMissing(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(filepath.Join(f.base, "documents")))
	p := f.pipeline(Deps{})

	_, err := p.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrSourceDirMissing)
	assert.True(t, IsSetupError(err))
}

func TestRun_CorruptRegistryReprocesses(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	require.NoError(t, os.MkdirAll(filepath.Join(f.base, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.base, "data", "processed_files.json"), []byte("{not json"), 0o644))
	p := f.pipeline(Deps{})

	stats, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
}

func TestRun_ConflictedCorpusIsSanitized(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	require.NoError(t, os.MkdirAll(filepath.Join(f.base, "data"), 0o755))
	conflicted := "[\n<<<<<<< HEAD\n  {\"filename\": \"x.pdf\"}\n=======\n  {\"filename\": \"y.pdf\"}\n>>>>>>> main\n]\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.base, "data", "documents.json"), []byte(conflicted), 0o644))
	p := f.pipeline(Deps{})

	_, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.pdf", recs[0].Filename)
}

func TestRun_Ledger(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a", "b.pdf": "b"})
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := f.pipeline(Deps{Storage: db})
	ctx := context.Background()

	stats, err := p.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	require.NotEmpty(t, stats.RunID)

	run, err := db.GetRun(ctx, stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunCompleted, run.Status)
	assert.Equal(t, 2, run.FilesProcessed)
	assert.True(t, run.Force)
	assert.Equal(t, "mock-v1", run.Model)

	require.NoError(t, os.Remove(filepath.Join(f.base, "documents", "a.pdf")))
	stats, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	files, err := db.ListRunFiles(ctx, stats.RunID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, storage.OutcomeDeleted, files[0].Outcome)
	assert.Equal(t, "documents/a.pdf", files[0].RelPath)

	last, err := db.LastFileResult(ctx, "documents/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeProcessed, last.Outcome)
	assert.Equal(t, "multi-pass", last.Method)
}

func TestRun_HooksOnlyOnChange(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a"})
	hook := &countingHook{}
	p := f.pipeline(Deps{Hooks: []hooks.Hook{hook}})
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	_, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	require.Len(t, hook.events, 1)
	ev := hook.events[0]
	assert.Equal(t, []string{"a.pdf"}, ev.Processed)
	assert.Equal(t, 1, ev.Total)
	assert.Equal(t, []string{
		filepath.Join("data", "documents.json"),
		filepath.Join("dist", "data", "documents.json"),
		filepath.Join("data", "processed_files.json"),
	}, ev.Paths)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": "a", "b.pdf": "b"})
	p := f.pipeline(Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := p.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.FilesProcessed)

	var registry map[string]string
	require.NoError(t, json.Unmarshal(f.read(t, "data/processed_files.json"), &registry))
	assert.Empty(t, registry, "unfinished files stay unregistered")
}

func TestRun_InProgress(t *testing.T) {
	f := newFixture(t, nil)
	p := f.pipeline(Deps{})

	require.True(t, p.lock.TryAcquire())
	assert.True(t, p.Running())
	_, err := p.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	p.lock.Release()

	_, err = p.Run(context.Background(), RunOptions{})
	assert.NoError(t, err)
}

func TestRun_WorkerPoolBounded(t *testing.T) {
	pdfs := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		pdfs[n+".pdf"] = n
	}
	f := newFixture(t, pdfs)
	gen := &slowGenerator{mockGenerator: f.gen, delay: 10 * time.Millisecond}
	p := f.pipeline(Deps{Generator: gen})
	p.cfg.Pipeline.PassConcurrency = 1

	stats, err := p.Run(context.Background(), RunOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, stats.FilesProcessed)
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}

// slowGenerator tracks peak concurrency across files
type slowGenerator struct {
	*mockGenerator
	delay  time.Duration
	active atomic.Int32
	peak   atomic.Int32
}

func (s *slowGenerator) Generate(ctx context.Context, prompt string, opts generator.Options) (string, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return s.mockGenerator.Generate(ctx, prompt, opts)
}

func TestDiscover(t *testing.T) {
	base := t.TempDir()
	docs := filepath.Join(base, "documents")
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "nested"), 0o755))
	for _, name := range []string{"b.pdf", "A.PDF", "notes.txt", ".hidden.pdf", "nested/c.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(docs, name), []byte(name), 0o644))
	}

	files, unreadable, err := Discover(docs, base)
	require.NoError(t, err)
	assert.Empty(t, unreadable)
	require.Len(t, files, 2)
	assert.Equal(t, "A.PDF", files[0].Name)
	assert.Equal(t, "documents/b.pdf", files[1].RelPath)
	assert.Len(t, files[1].Hash, 32)
	assert.Equal(t, int64(len("b.pdf")), files[1].Size)
	assert.True(t, filepath.IsAbs(files[1].Path))

	t.Run("outside base", func(t *testing.T) {
		files, _, err := Discover(docs, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "documents/b.pdf", files[1].RelPath)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := Discover(filepath.Join(base, "nope"), base)
		assert.ErrorIs(t, err, ErrSourceDirMissing)
	})
}
