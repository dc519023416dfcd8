package driven

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// QueryLogStore persists the append-only search audit log.
type QueryLogStore interface {
	// Append writes one query log entry. Entries are never mutated.
	Append(ctx context.Context, entry domain.QueryLogEntry) error

	// ListByWorkspace returns up to limit entries for a workspace,
	// newest first.
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]domain.QueryLogEntry, error)
}
