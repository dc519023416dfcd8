package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driving"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexAdmin = (*IndexService)(nil)

// resyncBatchSize is the number of records replaced per transaction
// during a full-workspace rebuild, bounding lock duration.
const resyncBatchSize = 100

// IndexService rebuilds a workspace's lexical index from the catalog and
// entity store.
type IndexService struct {
	catalog  driven.DocumentCatalog
	entities driven.EntityStore
	index    driven.TextIndex
}

// NewIndexService creates a new index maintenance service.
func NewIndexService(
	catalog driven.DocumentCatalog,
	entities driven.EntityStore,
	index driven.TextIndex,
) *IndexService {
	return &IndexService{
		catalog:  catalog,
		entities: entities,
		index:    index,
	}
}

// Resync rebuilds every document and entity index record for a workspace
// in fixed-size batches, each inside its own short transaction.
func (s *IndexService) Resync(ctx context.Context, workspaceID string) (*domain.ResyncStats, error) {
	logger.Section("Index resync")
	logger.Debug("Workspace: %s", workspaceID)

	if workspaceID == "" {
		return nil, domain.ErrInvalidInput
	}
	stats := &domain.ResyncStats{}

	docs, err := s.catalog.ListDocuments(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	records := make([]driven.IndexDocument, 0, len(docs))
	for _, doc := range docs {
		records = append(records, driven.IndexDocument{
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Title:       doc.Title,
			ContentText: doc.Extraction.Text(),
		})
	}
	for start := 0; start < len(records); start += resyncBatchSize {
		end := min(start+resyncBatchSize, len(records))
		if err := s.index.SyncDocuments(ctx, records[start:end]); err != nil {
			return nil, fmt.Errorf("sync document batch at %d: %w", start, err)
		}
		stats.Documents += end - start
		stats.Batches++
	}

	entities, err := s.entities.ListEntities(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	entityRecords := make([]driven.IndexEntity, 0, len(entities))
	for _, e := range entities {
		entityRecords = append(entityRecords, driven.IndexEntity{
			EntityID:    e.ID,
			WorkspaceID: e.WorkspaceID,
			Name:        e.Name,
			Aliases:     strings.Join(e.Aliases, " "),
		})
	}
	for start := 0; start < len(entityRecords); start += resyncBatchSize {
		end := min(start+resyncBatchSize, len(entityRecords))
		if err := s.index.SyncEntities(ctx, entityRecords[start:end]); err != nil {
			return nil, fmt.Errorf("sync entity batch at %d: %w", start, err)
		}
		stats.Entities += end - start
		stats.Batches++
	}

	logger.Info("Resynced workspace %s: %d documents, %d entities in %d batches",
		workspaceID, stats.Documents, stats.Entities, stats.Batches)
	return stats, nil
}
