package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonardonifabio/tech-documents/internal/logger"
	"github.com/lonardonifabio/tech-documents/internal/pipeline"
)

type recorder struct {
	mu      sync.Mutex
	reasons []string
	calls   chan string
	err     error
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan string, 16)}
}

func (r *recorder) run(_ context.Context, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	r.calls <- reason
	return r.err
}

func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.calls:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s run", want)
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create pdf", fsnotify.Event{Name: "/d/a.pdf", Op: fsnotify.Create}, true},
		{"write upper-case pdf", fsnotify.Event{Name: "/d/A.PDF", Op: fsnotify.Write}, true},
		{"remove pdf", fsnotify.Event{Name: "/d/a.pdf", Op: fsnotify.Remove}, true},
		{"rename pdf", fsnotify.Event{Name: "/d/a.pdf", Op: fsnotify.Rename}, true},
		{"write with chmod", fsnotify.Event{Name: "/d/a.pdf", Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: "/d/a.pdf", Op: fsnotify.Chmod}, false},
		{"text file", fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Create}, false},
		{"hidden pdf", fsnotify.Event{Name: "/d/.a.pdf", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relevant(tt.ev))
		})
	}
}

func TestWatch_RunsOnStartupAndChange(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := New(dir, rec.run, WithDebounce(50*time.Millisecond), WithPollInterval(0), WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	rec.wait(t, ReasonStartup)

	// a burst of writes collapses into one run
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("12"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	rec.wait(t, ReasonChange)

	select {
	case extra := <-rec.calls:
		t.Fatalf("unexpected extra run: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatch_Polls(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	rec.err = errors.New("run failed")
	w := New(dir, rec.run, WithPollInterval(30*time.Millisecond), WithLogger(logger.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	rec.wait(t, ReasonStartup)
	rec.wait(t, ReasonPoll)
	rec.wait(t, ReasonPoll)
}

func TestWatch_MissingDirectory(t *testing.T) {
	rec := newRecorder()
	w := New(filepath.Join(t.TempDir(), "missing"), rec.run, WithLogger(logger.Discard()))

	err := w.Watch(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrSourceDirMissing)
	assert.Empty(t, rec.reasons)
}

func TestNew_Defaults(t *testing.T) {
	w := New("/docs", nil)
	assert.Equal(t, 2*time.Second, w.debounce)
	assert.Equal(t, 10*time.Second, w.poll)
	assert.NotNil(t, w.logger)
}
