// Package watcher re-runs the pipeline when documents are added, changed or removed.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lonardonifabio/tech-documents/internal/pipeline"
)

// Reasons passed to RunFunc
const (
	ReasonStartup = "startup"
	ReasonChange  = "change"
	ReasonPoll    = "poll"
)

// RunFunc performs one pipeline run
type RunFunc func(ctx context.Context, reason string) error

// Watcher watches one directory. Runs never overlap.
type Watcher struct {
	dir      string
	run      RunFunc
	debounce time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long the directory must be quiet before a run starts
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the safety re-scan period. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher over dir
func New(dir string, run RunFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		run:      run,
		debounce: 2 * time.Second,
		poll:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Watch runs once, then again after every burst of relevant events and on every
// poll tick, until ctx is done. It returns nil on cancellation; run errors are
// logged and do not stop watching.
func (w *Watcher) Watch(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", pipeline.ErrSourceDirMissing, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", pipeline.ErrSourceDirMissing, w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching documents", "dir", w.dir, "debounce", w.debounce, "poll", w.poll)

	w.runOnce(ctx, ReasonStartup)

	debounce := time.NewTimer(time.Hour)
	stopTimer(debounce)
	defer debounce.Stop()

	var tick <-chan time.Time
	if w.poll > 0 {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !Relevant(ev) {
				continue
			}
			w.logger.Debug("document event", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			stopTimer(debounce)
			debounce.Reset(w.debounce)
			pending = true

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-debounce.C:
			if pending {
				pending = false
				w.runOnce(ctx, ReasonChange)
			}

		case <-tick:
			if !pending {
				w.runOnce(ctx, ReasonPoll)
			}
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if err := w.run(ctx, reason); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("run failed", "reason", reason, "error", err)
	}
}

// Relevant reports whether ev can change the set of documents
func Relevant(ev fsnotify.Event) bool {
	if !pipeline.IsPDF(filepath.Base(ev.Name)) {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}

// stopTimer stops t and drains its channel
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
