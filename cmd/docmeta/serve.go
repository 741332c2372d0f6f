package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lonardonifabio/tech-documents/internal/mcp"
	"github.com/lonardonifabio/tech-documents/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the pipeline as MCP tools on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the tools
process_documents, get_status, get_document and list_documents.
Logs go to stderr; stdout is reserved for the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{allowDegraded: flagAllowDegraded})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		server := mcp.NewServer(a.pipeline, a.db, a.logger)
		if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		a.logger.Info("server stopped")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "docmeta %s\n", version)
		fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagAllowDegraded, "allow-degraded", false, "build records from filenames when the service is unavailable")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
