package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lonardonifabio/tech-documents/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [model]",
	Short: "Process documents now and again whenever the documents directory changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := appOptions{
			allowDegraded: flagAllowDegraded,
			gitCommit:     flagGitCommit,
			gitPush:       flagGitPush,
			workers:       flagWorkers,
		}
		if len(args) == 1 {
			opts.model = args[0]
		}

		a, err := newApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		run := func(ctx context.Context, reason string) error {
			a.logger.Info("starting run", "reason", reason)
			_, err := a.pipeline.Run(ctx, a.runOptions(false))
			return err
		}

		w := watcher.New(a.cfg.DocumentsDir(), run,
			watcher.WithDebounce(a.cfg.Watch.Debounce.Duration),
			watcher.WithPollInterval(a.cfg.Watch.PollInterval.Duration),
			watcher.WithLogger(a.logger),
		)
		if err := w.Watch(ctx); err != nil {
			return err
		}
		a.logger.Info("watch stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&flagWorkers, "workers", 0, "documents analyzed in parallel (default from config)")
	watchCmd.Flags().BoolVar(&flagGitCommit, "git-commit", false, "commit the corpus and registry after a change")
	watchCmd.Flags().BoolVar(&flagGitPush, "git-push", false, "push after committing (requires --git-commit)")
	watchCmd.Flags().BoolVar(&flagAllowDegraded, "allow-degraded", false, "build records from filenames when the service is unavailable")

	rootCmd.AddCommand(watchCmd)
}
