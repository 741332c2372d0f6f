package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lonardonifabio/tech-documents/internal/tracker"
)

var flagRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending documents and recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		plan, err := a.pipeline.Plan(false)
		if err != nil {
			return err
		}
		records, err := a.pipeline.Records()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Documents: %s\n", a.cfg.DocumentsDir())
		fmt.Fprintf(out, "Records:   %d\n", len(records))
		fmt.Fprintf(out, "Pending:   %d new, %d changed, %d missing record, %d deleted (%d up to date)\n",
			plan.Count(tracker.StatusNew), plan.Count(tracker.StatusChanged),
			plan.Count(tracker.StatusMissingRecord), len(plan.Deleted), len(plan.Skip))

		if a.db == nil || flagRuns <= 0 {
			return nil
		}

		ctx := context.Background()
		status, err := a.db.GetStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Ledger:    %d runs, %d cached responses, schema %s, %.2f MB (%s)\n",
			status.Runs, status.ResponsesCached, status.SchemaVersion, status.DatabaseSizeMB, status.BuildMode)

		runs, err := a.db.ListRuns(ctx, flagRuns)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSTATUS\tMODEL\tPROCESSED\tFAILED\tDELETED\tDURATION")
		for _, r := range runs {
			model := r.Model
			if r.Degraded {
				model += " (degraded)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, model,
				r.FilesProcessed, r.FilesFailed, r.FilesDeleted, r.Duration().Round(time.Second))
		}
		return tw.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&flagRuns, "runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
