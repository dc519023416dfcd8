package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// QueryLogReader is the read-only view of the query log the CLI needs.
type QueryLogReader interface {
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]domain.QueryLogEntry, error)
}

var (
	logLimit int
	logJSON  bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent search queries for the workspace",
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "maximum number of entries")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output entries as JSON")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	if services == nil || services.QueryLog == nil {
		return errors.New("query log not configured")
	}

	entries, err := services.QueryLog.ListByWorkspace(context.Background(), flagWorkspace, logLimit)
	if err != nil {
		return fmt.Errorf("failed to read query log: %w", err)
	}

	if logJSON {
		return printJSON(cmd, entries)
	}

	if len(entries) == 0 {
		cmd.Println("No queries logged yet.")
		return nil
	}

	for _, entry := range entries {
		cmd.Printf("%s  %s\n", entry.CreatedAt.Format(time.RFC3339), entry.Query)
		cmd.Printf("    %d results in %s", entry.ResultCount, entry.Elapsed.Round(time.Millisecond))
		if entry.UserID != "" {
			cmd.Printf(" (user %s)", entry.UserID)
		}
		cmd.Println()
	}
	return nil
}
