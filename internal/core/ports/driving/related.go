package driving

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// RelatedRanker scores documents related to a source document via shared
// canonical entities.
type RelatedRanker interface {
	// Related returns other documents sharing canonical entities with the
	// source, ranked by weighted overlap. A source with no entities yields
	// an empty result, not an error.
	Related(ctx context.Context, workspaceID, documentID string, opts domain.RelatedOptions) (*domain.RelatedResult, error)
}
