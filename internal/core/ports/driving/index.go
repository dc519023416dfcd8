package driving

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// IndexAdmin drives maintenance of the lexical index.
type IndexAdmin interface {
	// Resync rebuilds a workspace's document and entity index records in
	// fixed-size batches, each inside its own short transaction.
	Resync(ctx context.Context, workspaceID string) (*domain.ResyncStats, error)
}
