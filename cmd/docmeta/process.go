package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lonardonifabio/tech-documents/internal/config"
)

var (
	flagForce         bool
	flagWorkers       int
	flagGitCommit     bool
	flagGitPush       bool
	flagAllowDegraded bool
)

var processCmd = &cobra.Command{
	Use:   "process [model]",
	Short: "Analyze new and changed documents and update the corpus",
	Long: `Analyze every PDF in the documents directory that is new or changed since the
last run, then rewrite the corpus and the processed-file registry.

The model may be given as an argument or through ` + config.EnvOllamaModel + `.
Exit status is 0 both when documents were processed and when there was nothing to do.`,
	Args: cobra.MaximumNArgs(1),
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

		stats, err := a.pipeline.Run(ctx, a.runOptions(flagForce))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if stats.FilesProcessed == 0 && stats.FilesDeleted == 0 && stats.FilesFailed == 0 && stats.FilesUnreadable == 0 {
			fmt.Fprintf(out, "Nothing to do: %d documents up to date\n", stats.FilesSkipped)
			return nil
		}
		fmt.Fprintf(out, "Processed %d, skipped %d, failed %d, unreadable %d, deleted %d in %s\n",
			stats.FilesProcessed, stats.FilesSkipped, stats.FilesFailed, stats.FilesUnreadable, stats.FilesDeleted,
			stats.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "Corpus: %d records", stats.Records)
		if stats.Degraded {
			fmt.Fprint(out, " (degraded: service unavailable)")
		}
		fmt.Fprintln(out)
		for _, msg := range stats.ErrorMessages {
			fmt.Fprintln(os.Stderr, "  failed:", msg)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "reprocess every document regardless of its hash")
	processCmd.Flags().IntVar(&flagWorkers, "workers", 0, "documents analyzed in parallel (default from config)")
	processCmd.Flags().BoolVar(&flagGitCommit, "git-commit", false, "commit the corpus and registry after a change")
	processCmd.Flags().BoolVar(&flagGitPush, "git-push", false, "push after committing (requires --git-commit)")
	processCmd.Flags().BoolVar(&flagAllowDegraded, "allow-degraded", false, "build records from filenames when the service is unavailable")

	rootCmd.AddCommand(processCmd)
}
