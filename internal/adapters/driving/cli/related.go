package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

var (
	relatedLimit    int
	relatedNoRerank bool
	relatedJSON     bool
)

var relatedCmd = &cobra.Command{
	Use:   "related [document-id]",
	Short: "List documents related to a document via shared entities",
	Long: `Ranks other workspace documents by weighted shared-entity overlap
with the given document. Each result is annotated with the entities that
connect it to the source.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	relatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 10, "maximum number of results")
	relatedCmd.Flags().BoolVar(&relatedNoRerank, "no-rerank", false, "skip the AI re-rank")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	if services == nil || services.Related == nil {
		return errors.New("related ranker not configured")
	}

	result, err := services.Related.Related(context.Background(), flagWorkspace, args[0], domain.RelatedOptions{
		Limit:      relatedLimit,
		SkipRerank: relatedNoRerank,
	})
	if err != nil {
		return fmt.Errorf("related query failed: %w", err)
	}

	if relatedJSON {
		return printJSON(cmd, result)
	}

	if result.EntityCount == 0 {
		cmd.Println("Document has no entities; nothing to relate.")
		return nil
	}
	if len(result.Documents) == 0 {
		cmd.Println("No related documents found.")
		return nil
	}

	cmd.Printf("Related to %s (%d entities):\n\n", result.SourceDocumentID, result.EntityCount)
	for i, doc := range result.Documents {
		title := doc.Title
		if title == "" {
			title = doc.DocumentID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, doc.Relevance)

		names := make([]string, 0, len(doc.SharedEntities))
		for _, conn := range doc.SharedEntities {
			names = append(names, conn.Name)
		}
		if len(names) > 0 {
			cmd.Printf("      Shared: %s\n", strings.Join(names, ", "))
		}
		if doc.Reason != "" {
			cmd.Printf("      %s\n", doc.Reason)
		}
	}
	for _, note := range result.Notes {
		cmd.Printf("\nnote: %s\n", note)
	}
	return nil
}
