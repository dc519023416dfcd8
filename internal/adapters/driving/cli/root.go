// Package cli implements the command-line driving adapter.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driving"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving-port implementations the commands run against.
type Services struct {
	Harvester  driving.Harvester
	Related    driving.RelatedRanker
	Search     driving.SemanticSearch
	IndexAdmin driving.IndexAdmin
	QueryLog   QueryLogReader
}

// services holds the injected implementations.
var services *Services

// SetServices injects the service implementations before Execute runs.
func SetServices(s *Services) {
	services = s
}

var (
	flagVerbose   bool
	flagWorkspace string
)

var rootCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Cross-document knowledge engine",
	Long: `Knowledge is a cross-document knowledge engine: it canonicalizes
entities mentioned across a workspace's documents, maintains a lexical
search index, ranks related documents by shared entities, and answers
natural-language questions with cited results.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "default", "workspace to operate on")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
