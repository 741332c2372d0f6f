package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lonardonifabio/tech-documents/internal/config"
	"github.com/lonardonifabio/tech-documents/internal/generator"
	"github.com/lonardonifabio/tech-documents/internal/hooks"
	"github.com/lonardonifabio/tech-documents/internal/logger"
	"github.com/lonardonifabio/tech-documents/internal/pipeline"
	"github.com/lonardonifabio/tech-documents/internal/storage"
)

var (
	flagBase    string
	flagConfig  string
	flagVerbose bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "docmeta",
	Short: "Extract searchable metadata from a directory of PDFs",
	Long: `docmeta analyzes the PDFs in a documents directory with a local or hosted
language model and maintains the JSON corpus a static site is built from.

Only new and changed documents are analyzed; unchanged runs rewrite nothing.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("docmeta %s (%s, sqlite %s)\n", version, buildTime, storage.BuildMode))

	rootCmd.PersistentFlags().StringVar(&flagBase, "base", ".", "base directory holding documents/ and data/")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default <base>/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "log JSON lines instead of text")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// appOptions select which collaborators a command needs
type appOptions struct {
	model         string // overrides the configured model when set
	allowDegraded bool
	gitCommit     bool
	gitPush       bool
	workers       int
	offline       bool // build no generator at all
}

// app holds the wired collaborators of one command invocation
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       storage.Storage
	gen      generator.Generator
	pipeline *pipeline.Pipeline
}

// newApp loads configuration and wires storage, generator and pipeline.
// The ledger is optional: failing to open it is logged and the run goes on.
func newApp(opts appOptions) (*app, error) {
	log := logger.New(logger.Options{Verbose: flagVerbose, JSON: flagJSONLog})
	slog.SetDefault(log)

	cfg, err := config.Load(flagConfig, flagBase)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if opts.model != "" {
		cfg.Service.Model = opts.model
	}
	if opts.workers > 0 {
		cfg.Pipeline.Workers = opts.workers
	}
	if opts.allowDegraded {
		cfg.Pipeline.AllowDegraded = true
	}
	if opts.gitCommit {
		cfg.Pipeline.GitCommit = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}

	var store generator.ResponseStore
	if db, err := openStorage(cfg.DatabasePath()); err != nil {
		log.Warn("run ledger unavailable", "path", cfg.DatabasePath(), "error", err)
	} else {
		a.db = db
		store = db
	}

	if !opts.offline {
		gen, err := generator.NewFromConfig(cfg, store, log)
		switch {
		case err == nil:
			a.gen = gen
		case cfg.Pipeline.AllowDegraded:
			log.Warn("no text-generation service, records will be built from filenames", "error", err)
		default:
			a.Close()
			return nil, fmt.Errorf("%w: %v", pipeline.ErrServiceUnavailable, err)
		}
	}

	var runHooks []hooks.Hook
	if cfg.Pipeline.GitCommit {
		runHooks = append(runHooks, hooks.NewGitCommitHook(cfg.BaseDir, opts.gitPush, log))
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Config:    cfg,
		Generator: a.gen,
		Storage:   a.db,
		Hooks:     runHooks,
		Logger:    log,
	})
	return a, nil
}

func openStorage(path string) (storage.Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (a *app) runOptions(force bool) pipeline.RunOptions {
	return pipeline.RunOptions{
		Force:         force,
		AllowDegraded: a.cfg.Pipeline.AllowDegraded,
	}
}

// Close releases the generator and the ledger
func (a *app) Close() {
	if a.gen != nil {
		_ = a.gen.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
