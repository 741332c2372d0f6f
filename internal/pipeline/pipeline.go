package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonardonifabio/tech-documents/internal/analyzer"
	"github.com/lonardonifabio/tech-documents/internal/config"
	"github.com/lonardonifabio/tech-documents/internal/corpus"
	"github.com/lonardonifabio/tech-documents/internal/extractor"
	"github.com/lonardonifabio/tech-documents/internal/generator"
	"github.com/lonardonifabio/tech-documents/internal/hooks"
	"github.com/lonardonifabio/tech-documents/internal/parser"
	"github.com/lonardonifabio/tech-documents/internal/storage"
	"github.com/lonardonifabio/tech-documents/internal/tracker"
	"github.com/lonardonifabio/tech-documents/internal/validator"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// Setup failures. Nothing is written when Run returns one of these.
var (
	ErrSourceDirMissing   = errors.New("documents directory does not exist")
	ErrServiceUnavailable = errors.New("text-generation service unavailable")
	ErrRunInProgress      = errors.New("a run is already in progress")
)

// ErrUnreadableFile marks a PDF that exists but cannot be hashed
var ErrUnreadableFile = errors.New("document cannot be read")

// Deps are the collaborators of a pipeline. Only Config is required.
type Deps struct {
	Config    config.Config
	Generator generator.Generator // nil means every record comes from heuristics
	Extractor extractor.Extractor // defaults to extractor.Default
	Storage   storage.Storage     // optional run ledger
	Hooks     []hooks.Hook
	Logger    *slog.Logger
}

// Pipeline coordinates one processing run: discover -> plan -> analyze -> merge -> write
type Pipeline struct {
	cfg       config.Config
	gen       generator.Generator
	extractor extractor.Extractor
	storage   storage.Storage
	hooks     []hooks.Hook
	logger    *slog.Logger

	lock RunLock
}

// RunOptions adjust a single run
type RunOptions struct {
	Force         bool // reprocess every file regardless of its hash
	AllowDegraded bool // continue with heuristics when the service is down
	Workers       int  // overrides the configured worker count when positive
}

// Statistics summarizes a run
type Statistics struct {
	RunID           string
	FilesDiscovered int
	FilesProcessed  int
	FilesSkipped    int
	FilesFailed     int
	FilesDeleted    int
	FilesUnreadable int // present but unreadable, record and registry entry kept
	Records         int // records in the corpus after the run
	CorpusChanged   bool
	RegistryChanged bool
	Degraded        bool
	Methods         map[string]int // processed files per analysis method
	Duration        time.Duration
	ErrorMessages   []string
}

// New creates a pipeline
func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Extractor == nil {
		d.Extractor = extractor.Default(d.Logger)
	}
	return &Pipeline{
		cfg:       d.Config,
		gen:       d.Generator,
		extractor: d.Extractor,
		storage:   d.Storage,
		hooks:     d.Hooks,
		logger:    d.Logger,
	}
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() config.Config { return p.cfg }

// Running reports whether a run is in progress
func (p *Pipeline) Running() bool { return p.lock.Held() }

// Plan scans the documents directory and reports what a run would do,
// without touching the service or writing anything.
func (p *Pipeline) Plan(force bool) (*tracker.Plan, error) {
	files, unreadable, err := Discover(p.cfg.DocumentsDir(), p.cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	reg, err := p.loadRegistry()
	if err != nil {
		return nil, err
	}
	existing, err := p.corpusStore().Load()
	if err != nil {
		return nil, err
	}
	return reg.Plan(files, force, hasRecordFunc(existing), keys(unreadable)...), nil
}

// Records loads the current corpus
func (p *Pipeline) Records() ([]types.DocumentRecord, error) {
	return p.corpusStore().Load()
}

// fileResult is the outcome of one worker
type fileResult struct {
	item     tracker.Item
	record   types.DocumentRecord
	method   string
	chunks   int
	conf     float64
	duration time.Duration
	err      error
	done     bool
}

// Run processes every new or changed document and rewrites the corpus and the
// registry. Files unchanged since the last run are skipped; files removed from
// the documents directory lose their records.
//
// Cancellation is honored between files: files that did not finish are not
// registered, so the next run picks them up again.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Statistics, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer p.lock.Release()

	startTime := time.Now()
	stats := &Statistics{
		Methods:       make(map[string]int),
		ErrorMessages: make([]string, 0),
	}

	files, unreadable, err := Discover(p.cfg.DocumentsDir(), p.cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	stats.FilesDiscovered = len(files)
	stats.FilesUnreadable = len(unreadable)
	for _, u := range unreadable {
		p.logger.Warn("skipping unreadable document", "file", u.Name, "error", u.Err)
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", u.Name, u.Err))
	}

	reg, err := p.loadRegistry()
	if err != nil {
		return nil, err
	}

	store := p.corpusStore()
	existing, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	plan := reg.Plan(files, opts.Force, hasRecordFunc(existing), keys(unreadable)...)
	stats.FilesSkipped = len(plan.Skip)
	p.logger.Info("scan complete",
		"discovered", len(files),
		"new", plan.Count(tracker.StatusNew),
		"changed", plan.Count(tracker.StatusChanged),
		"forced", plan.Count(tracker.StatusForced),
		"missing_record", plan.Count(tracker.StatusMissingRecord),
		"unchanged", len(plan.Skip),
		"unreadable", len(unreadable),
		"deleted", len(plan.Deleted))

	gen := p.gen
	if len(plan.Process) > 0 {
		gen, err = p.checkService(ctx, opts.AllowDegraded)
		if err != nil {
			return nil, err
		}
		stats.Degraded = gen == nil
	}

	run := p.beginRun(ctx, opts, stats)

	results := p.processAll(ctx, gen, plan.Process, p.workers(opts))

	fresh := make([]types.DocumentRecord, 0, len(results))
	var processed []types.SourceFile
	for _, r := range results {
		if !r.done {
			continue
		}
		if r.err != nil {
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.item.File.Name, r.err))
			p.recordFile(ctx, run, r)
			continue
		}
		stats.FilesProcessed++
		stats.Methods[r.method]++
		fresh = append(fresh, r.record)
		processed = append(processed, r.item.File)
		p.recordFile(ctx, run, r)
	}

	removed := make([]string, len(plan.Deleted))
	for i, d := range plan.Deleted {
		removed[i] = d.Filename
	}
	stats.FilesDeleted = len(plan.Deleted)

	merged := corpus.Merge(existing, removed, fresh)
	stats.Records = len(merged)

	changed, err := store.Save(merged)
	if err != nil {
		p.finishRun(ctx, run, stats, plan.Deleted, err)
		return nil, fmt.Errorf("failed to save corpus: %w", err)
	}
	stats.CorpusChanged = changed

	// registry is updated only after the corpus is safely written
	for _, f := range processed {
		reg.MarkProcessed(f)
	}
	for _, d := range plan.Deleted {
		reg.Forget(d.Key)
	}
	regChanged, err := reg.Save()
	if err != nil {
		p.finishRun(ctx, run, stats, plan.Deleted, err)
		return nil, err
	}
	stats.RegistryChanged = regChanged

	runErr := ctx.Err()
	if (stats.CorpusChanged || stats.RegistryChanged) && runErr == nil && len(p.hooks) > 0 {
		hooks.RunAll(ctx, p.hooks, p.hookEvent(run, stats, processed, removed), p.logger)
	}

	stats.Duration = time.Since(startTime)
	p.finishRun(ctx, run, stats, plan.Deleted, runErr)

	p.logger.Info("run complete",
		"processed", stats.FilesProcessed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"deleted", stats.FilesDeleted,
		"records", stats.Records,
		"corpus_changed", stats.CorpusChanged,
		"duration", stats.Duration)

	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

func (p *Pipeline) workers(opts RunOptions) int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	if p.cfg.Pipeline.Workers > 0 {
		return p.cfg.Pipeline.Workers
	}
	return 1
}

// checkService returns the generator to use for this run, or nil in degraded mode
func (p *Pipeline) checkService(ctx context.Context, allowDegraded bool) (generator.Generator, error) {
	if p.gen != nil && p.gen.IsAvailable(ctx) && p.gen.EnsureModelAvailable(ctx) {
		return p.gen, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reason := "no generator configured"
	if p.gen != nil {
		reason = fmt.Sprintf("%s model %s not reachable", p.gen.Provider(), p.gen.Model())
	}
	if !allowDegraded {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, reason)
	}
	p.logger.Warn("text-generation service unavailable, records will be built from filenames", "reason", reason)
	return nil, nil
}

// processAll runs the bounded worker pool. Results keep the order of items.
func (p *Pipeline) processAll(ctx context.Context, gen generator.Generator, items []tracker.Item, workers int) []fileResult {
	results := make([]fileResult, len(items))
	if len(items) == 0 {
		return results
	}

	an := analyzer.New(gen, parser.New(), analyzer.ConfigFrom(p.cfg), p.logger)

	var g errgroup.Group
	g.SetLimit(workers)

	var mu sync.Mutex
	completed := 0
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := p.processFile(ctx, an, item)
			results[i] = r

			if r.done {
				mu.Lock()
				completed++
				n := completed
				mu.Unlock()
				p.logger.Info("document processed",
					"file", item.File.Name,
					"status", item.Status,
					"method", r.method,
					"confidence", r.conf,
					"progress", fmt.Sprintf("%d/%d", n, len(items)),
					"duration", r.duration)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// processFile extracts, analyzes and validates one document.
// done is false when the run was cancelled before the file finished.
func (p *Pipeline) processFile(ctx context.Context, an *analyzer.Analyzer, item tracker.Item) fileResult {
	res := fileResult{item: item}
	if ctx.Err() != nil {
		return res
	}
	start := time.Now()

	if _, err := os.Stat(item.File.Path); err != nil {
		res.done = true
		res.err = fmt.Errorf("source file unreadable: %w", err)
		res.duration = time.Since(start)
		p.logger.Warn("skipping document", "file", item.File.Name, "error", err)
		return res
	}

	text, err := p.extractor.Extract(ctx, item.File.Path, p.cfg.Chunking.MaxPages)
	if err != nil {
		if ctx.Err() != nil {
			return res
		}
		p.logger.Warn("text extraction failed, falling back to filename", "file", item.File.Name, "error", err)
		text = ""
	}

	analysis, err := an.AnalyzeDocument(ctx, text, item.File.Name)
	if err != nil {
		// only cancellation is reported
		return res
	}

	res.record = validator.BuildRecord(analysis.Analysis, item.File, analysis.Confidence)
	res.method = analysis.Method
	res.chunks = analysis.Chunks
	res.conf = res.record.ConfidenceScore
	res.duration = time.Since(start)
	res.done = true
	return res
}

func (p *Pipeline) loadRegistry() (*tracker.Registry, error) {
	reg, err := tracker.Load(p.cfg.RegistryPath())
	if errors.Is(err, tracker.ErrCorruptRegistry) {
		p.logger.Warn("registry is corrupt, every document will be reprocessed", "path", p.cfg.RegistryPath(), "error", err)
		return reg, nil
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (p *Pipeline) corpusStore() *corpus.Store {
	working, publish := p.cfg.CorpusPaths()
	paths := []string{working}
	if publish != "" && publish != working {
		paths = append(paths, publish)
	}
	// New only fails without paths
	store, _ := corpus.New(p.logger, paths...)
	return store
}

func hasRecordFunc(records []types.DocumentRecord) func(string) bool {
	names := make(map[string]bool, len(records))
	for _, r := range records {
		names[r.Filename] = true
	}
	return func(filename string) bool { return names[filename] }
}

func (p *Pipeline) hookEvent(run *storage.Run, stats *Statistics, processed []types.SourceFile, removed []string) hooks.Event {
	ev := hooks.Event{Deleted: removed, Total: stats.Records}
	if run != nil {
		ev.RunID = run.ID
	}
	for _, f := range processed {
		ev.Processed = append(ev.Processed, f.Name)
	}

	working, publish := p.cfg.CorpusPaths()
	for _, path := range []string{working, publish, p.cfg.RegistryPath()} {
		if path == "" {
			continue
		}
		ev.Paths = append(ev.Paths, relativeTo(p.cfg.BaseDir, path))
	}
	return ev
}

func relativeTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}

// beginRun opens a ledger entry. Ledger failures never fail the run.
func (p *Pipeline) beginRun(ctx context.Context, opts RunOptions, stats *Statistics) *storage.Run {
	if p.storage == nil {
		return nil
	}
	run := &storage.Run{
		Force:           opts.Force,
		Degraded:        stats.Degraded,
		FilesDiscovered: stats.FilesDiscovered,
	}
	if p.gen != nil {
		run.Provider = p.gen.Provider()
		run.Model = p.gen.Model()
	} else {
		run.Model = p.cfg.Service.Model
	}
	if err := p.storage.CreateRun(ctx, run); err != nil {
		p.logger.Warn("failed to open run ledger entry", "error", err)
		return nil
	}
	stats.RunID = run.ID
	return run
}

func (p *Pipeline) recordFile(ctx context.Context, run *storage.Run, r fileResult) {
	if run == nil {
		return
	}
	f := &storage.RunFile{
		RunID:      run.ID,
		RelPath:    r.item.File.RelPath,
		Filename:   r.item.File.Name,
		Hash:       r.item.File.Hash,
		Outcome:    storage.OutcomeProcessed,
		Method:     r.method,
		Confidence: r.conf,
		Chunks:     r.chunks,
		Duration:   r.duration,
	}
	if r.err != nil {
		f.Outcome = storage.OutcomeFailed
		f.Error = r.err.Error()
	}
	if err := p.storage.RecordFile(context.WithoutCancel(ctx), f); err != nil {
		p.logger.Warn("failed to record file in ledger", "file", f.Filename, "error", err)
	}
}

// finishRun records deletions and closes the ledger entry in one transaction
func (p *Pipeline) finishRun(ctx context.Context, run *storage.Run, stats *Statistics, deleted []tracker.Deletion, runErr error) {
	if run == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	run.FilesProcessed = stats.FilesProcessed
	run.FilesSkipped = stats.FilesSkipped
	run.FilesFailed = stats.FilesFailed
	run.FilesDeleted = stats.FilesDeleted
	run.CorpusChanged = stats.CorpusChanged
	run.Degraded = stats.Degraded
	switch {
	case runErr == nil:
		run.Status = storage.RunCompleted
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		run.Status = storage.RunCancelled
		run.Error = runErr.Error()
	default:
		run.Status = storage.RunFailed
		run.Error = runErr.Error()
	}

	tx, err := p.storage.BeginTx(ctx)
	if err != nil {
		p.logger.Warn("failed to finish run ledger entry", "error", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range deleted {
		if err := tx.RecordFile(ctx, &storage.RunFile{
			RunID:    run.ID,
			RelPath:  d.Key,
			Filename: d.Filename,
			Outcome:  storage.OutcomeDeleted,
		}); err != nil {
			p.logger.Warn("failed to record deletion in ledger", "file", d.Filename, "error", err)
			return
		}
	}
	if err := tx.FinishRun(ctx, run); err != nil {
		p.logger.Warn("failed to finish run ledger entry", "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		p.logger.Warn("failed to commit run ledger entry", "error", err)
	}
}

// IsSetupError reports whether err means the run could not start
func IsSetupError(err error) bool {
	return errors.Is(err, ErrSourceDirMissing) || errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrRunInProgress)
}
