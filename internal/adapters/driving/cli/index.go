package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the text index",
}

var indexResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Rebuild the text index from stored documents and entities",
	Long: `Re-reads every document and entity in the workspace and rewrites
the text index in batches. Use after switching index backends or when the
index is suspected to have drifted from the catalog.`,
	RunE: runIndexResync,
}

func init() {
	indexResyncCmd.Flags().BoolVar(&indexJSON, "json", false, "output stats as JSON")
	indexCmd.AddCommand(indexResyncCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexResync(cmd *cobra.Command, args []string) error {
	if services == nil || services.IndexAdmin == nil {
		return errors.New("index service not configured")
	}

	stats, err := services.IndexAdmin.Resync(context.Background(), flagWorkspace)
	if err != nil {
		return fmt.Errorf("resync failed: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Resynced %d documents and %d entities in %d batches\n",
		stats.Documents, stats.Entities, stats.Batches)
	return nil
}
