package driven

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// DocumentCatalog is the engine's read-side view of the platform document
// store: titles, existence and the latest extraction snapshot. Document
// content and CRUD are owned upstream; the catalog is what the index sync,
// ranker and orchestrator join against.
type DocumentCatalog interface {
	// SaveDocument stores or replaces the engine's snapshot of a document.
	SaveDocument(ctx context.Context, doc domain.Document) error

	// GetDocument retrieves a document snapshot, or domain.ErrNotFound.
	GetDocument(ctx context.Context, workspaceID, documentID string) (*domain.Document, error)

	// ListDocuments returns all document snapshots in a workspace,
	// for batched index resync.
	ListDocuments(ctx context.Context, workspaceID string) ([]domain.Document, error)

	// DeleteDocument removes a document snapshot.
	DeleteDocument(ctx context.Context, workspaceID, documentID string) error
}
