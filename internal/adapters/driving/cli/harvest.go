package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// harvestInput is the JSON payload accepted by the harvest command: one
// document snapshot plus an optional field-confidence map, as produced by
// the upstream extraction subsystem.
type harvestInput struct {
	DocumentID string             `json:"documentId"`
	Title      string             `json:"title"`
	Extraction domain.Extraction  `json:"extraction"`
	Confidence map[string]float64 `json:"confidence,omitempty"`
}

var harvestJSON bool

var harvestCmd = &cobra.Command{
	Use:   "harvest [extraction.json]",
	Short: "Harvest entities from an extraction payload",
	Long: `Reads a document extraction payload from a JSON file (or stdin when
the argument is "-") and merges its entities and mentions into the
workspace. Re-harvesting the same document is idempotent.

Example payload:
  {
    "documentId": "doc-42",
    "title": "Services Agreement",
    "extraction": {
      "documentType": "contract",
      "contract": {"parties": [{"name": "Acme Corp", "role": "vendor"}]}
    },
    "confidence": {"parties[0].name": 0.95}
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().BoolVar(&harvestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	if services == nil || services.Harvester == nil {
		return errors.New("harvester not configured")
	}

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	var input harvestInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if input.DocumentID == "" {
		return errors.New("payload missing documentId")
	}

	doc := domain.Document{
		ID:          input.DocumentID,
		WorkspaceID: flagWorkspace,
		Title:       input.Title,
		Type:        input.Extraction.Type,
		Extraction:  input.Extraction,
	}

	result, err := services.Harvester.Harvest(context.Background(), doc, input.Confidence)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	if harvestJSON {
		return printJSON(cmd, result)
	}

	cmd.Printf("Harvested %s:\n", result.DocumentID)
	cmd.Printf("  entities:  %d created, %d reused\n", result.EntitiesCreated, result.EntitiesReused)
	cmd.Printf("  mentions:  %d created, %d skipped\n", result.MentionsCreated, result.MentionsSkipped)
	if result.LimitReached {
		cmd.Println("  warning: workspace entity limit reached; new entities were skipped")
	}
	for _, e := range result.Errors {
		cmd.Printf("  error: %s\n", e)
	}
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove [document-id]",
	Short: "Remove a document's entities, mentions and index records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if services == nil || services.Harvester == nil {
			return errors.New("harvester not configured")
		}
		if err := services.Harvester.RemoveDocument(context.Background(), flagWorkspace, args[0]); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		cmd.Printf("Removed %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
