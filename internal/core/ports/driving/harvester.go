package driving

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// Harvester turns per-document-type extraction payloads into canonical
// entities and mentions.
type Harvester interface {
	// Harvest maps one document's extraction payload into canonical
	// entities and mentions, merging into existing entities where the
	// normalised name matches. Per-entity failures are aggregated in the
	// result and never abort the batch.
	// The confidence map carries optional per-field extraction confidence.
	Harvest(ctx context.Context, doc domain.Document, confidence map[string]float64) (*domain.HarvestResult, error)

	// RemoveDocument deletes a document's mentions and index records and
	// decrements the affected entity counts.
	RemoveDocument(ctx context.Context, workspaceID, documentID string) error
}
