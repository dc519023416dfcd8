package driving

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// SemanticSearch answers natural-language questions across a workspace
// with cited results.
type SemanticSearch interface {
	// Ask runs the term-extraction, index-search, context-assembly and
	// synthesis pipeline for one question, degrading to keyword search on
	// timeout. Every invocation writes exactly one query log entry.
	Ask(ctx context.Context, q domain.Question) (*domain.SearchAnswer, error)
}
