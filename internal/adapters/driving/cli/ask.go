package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

var (
	askTimeout time.Duration
	askUser    string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a natural-language question against the workspace",
	Long: `Runs the semantic search pipeline: extracts key terms, gathers
candidate documents from the text index, and synthesises an answer with
cited sources. When the pipeline cannot finish within the deadline the
engine degrades to a plain keyword search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "overall pipeline deadline (default 20s)")
	askCmd.Flags().StringVar(&askUser, "user", "", "user recorded in the query log")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if services == nil || services.Search == nil {
		return errors.New("search service not configured")
	}

	answer, err := services.Search.Ask(context.Background(), domain.Question{
		WorkspaceID: flagWorkspace,
		UserID:      askUser,
		Query:       strings.Join(args, " "),
		Timeout:     askTimeout,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if askJSON {
		return printJSON(cmd, answer)
	}

	cmd.Println(answer.Answer)
	if len(answer.Results) > 0 {
		cmd.Println("\nSources:")
		for i, res := range answer.Results {
			title := res.Title
			if title == "" {
				title = res.DocumentID
			}
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, res.Relevance)
			if len(res.Entities) > 0 {
				cmd.Printf("      Entities: %s\n", strings.Join(res.Entities, ", "))
			}
			if res.Reason != "" {
				cmd.Printf("      %s\n", res.Reason)
			}
			if res.Snippet != "" {
				cmd.Printf("      %s\n", res.Snippet)
			}
		}
	}
	for _, note := range answer.Notes {
		cmd.Printf("\nnote: %s\n", note)
	}
	if logger.IsVerbose() {
		cmd.Printf("\nelapsed: %s\n", answer.Elapsed.Round(time.Millisecond))
	}
	return nil
}
