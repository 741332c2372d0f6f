// Package hooks runs side effects after the corpus has been written.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Event describes a completed corpus write
type Event struct {
	RunID     string
	Paths     []string // files written, relative to the hook directory or absolute
	Processed []string // filenames whose records were (re)built
	Deleted   []string // filenames whose records were removed
	Total     int      // records in the corpus after the write
}

// Hook is invoked after a successful corpus write
type Hook interface {
	Name() string
	AfterWrite(ctx context.Context, ev Event) error
}

// RunAll invokes every hook in order. Failures are logged and never stop the others.
func RunAll(ctx context.Context, hooks []Hook, ev Event, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, h := range hooks {
		if err := h.AfterWrite(ctx, ev); err != nil {
			logger.Warn("hook failed", "hook", h.Name(), "error", err)
			continue
		}
		logger.Debug("hook completed", "hook", h.Name())
	}
}

// ErrGitFailed wraps a failing git invocation
var ErrGitFailed = errors.New("git command failed")

// runner executes a command in dir and returns its combined output
type runner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// GitCommitHook stages the written files and commits them in Dir
type GitCommitHook struct {
	Dir    string
	Binary string
	Push   bool

	logger *slog.Logger
	run    runner
}

// NewGitCommitHook creates a hook committing in dir
func NewGitCommitHook(dir string, push bool, logger *slog.Logger) *GitCommitHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitCommitHook{Dir: dir, Binary: "git", Push: push, logger: logger, run: execRunner}
}

// Name implements Hook
func (h *GitCommitHook) Name() string { return "git-commit" }

// AfterWrite implements Hook. Nothing is committed when the index has no staged changes.
func (h *GitCommitHook) AfterWrite(ctx context.Context, ev Event) error {
	if len(ev.Paths) == 0 {
		return nil
	}

	if _, err := h.git(ctx, append([]string{"add", "--"}, ev.Paths...)...); err != nil {
		return err
	}

	// exit status 0 means nothing is staged
	if _, err := h.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		h.logger.Info("no changes to commit")
		return nil
	}

	msg := CommitMessage(ev)
	if _, err := h.git(ctx, "commit", "-m", msg); err != nil {
		return err
	}
	h.logger.Info("committed corpus", "message", msg)

	if h.Push {
		if _, err := h.git(ctx, "push"); err != nil {
			return err
		}
		h.logger.Info("pushed corpus")
	}
	return nil
}

func (h *GitCommitHook) git(ctx context.Context, args ...string) ([]byte, error) {
	out, err := h.run(ctx, h.Dir, h.Binary, args...)
	if err != nil {
		return out, fmt.Errorf("%w: git %s: %v: %s", ErrGitFailed, args[0], err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// CommitMessage summarizes an event as a one-line commit subject
func CommitMessage(ev Event) string {
	var parts []string
	switch len(ev.Processed) {
	case 0:
	case 1:
		parts = append(parts, "Process document: "+ev.Processed[0])
	default:
		parts = append(parts, fmt.Sprintf("Process %d documents", len(ev.Processed)))
	}
	switch len(ev.Deleted) {
	case 0:
	case 1:
		parts = append(parts, "remove "+ev.Deleted[0])
	default:
		parts = append(parts, fmt.Sprintf("remove %d documents", len(ev.Deleted)))
	}
	if len(parts) == 0 {
		parts = append(parts, "Update document corpus")
	}
	return fmt.Sprintf("%s (%d total)", strings.Join(parts, ", "), ev.Total)
}
