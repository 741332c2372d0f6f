// Package logger builds the structured logger shared by the CLI and the pipeline.
// Output always goes to stderr by default; stdout is reserved for command output
// and the MCP stdio transport.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Options controls handler selection and verbosity
type Options struct {
	Verbose bool      // include debug records
	JSON    bool      // emit JSON lines instead of text
	Output  io.Writer // defaults to os.Stderr
}

// New creates a logger for the given options
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts))
}

// Discard returns a logger that drops every record, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDefault returns l, or slog.Default() when l is nil
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
