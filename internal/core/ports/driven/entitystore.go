package driven

import (
	"context"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// DocumentEntity pairs a canonical entity with the mentions a specific
// document holds for it.
type DocumentEntity struct {
	Entity   domain.Entity
	Mentions []domain.Mention
}

// EntityStore persists canonical entities and mentions.
//
// Implementations must enforce the (workspace, type, normalized name)
// entity uniqueness and the (entity, document, field path) mention
// uniqueness at the storage layer, so concurrent harvest passes racing to
// create the same entity never double-insert.
type EntityStore interface {
	// FindOrCreate returns the canonical entity for the given
	// (workspace, type, normalized name), creating it if absent.
	// The create-or-fetch must be safe under concurrent callers:
	// losing an insert race fetches the winner's row.
	// Returns the entity and whether it was created by this call.
	FindOrCreate(ctx context.Context, entity domain.Entity) (*domain.Entity, bool, error)

	// Find returns the canonical entity for (workspace, type, normalized
	// name), or domain.ErrNotFound.
	Find(ctx context.Context, workspaceID string, entityType domain.EntityType, normalizedName string) (*domain.Entity, error)

	// AddMention inserts a mention unless one already exists for
	// (entity, document, field path). On insert it atomically increments
	// the entity's mention count, and its document count when this is the
	// entity's first mention in that document.
	// Returns whether the mention was created.
	AddMention(ctx context.Context, mention domain.Mention) (bool, error)

	// CountEntities returns the number of canonical entities in a workspace.
	CountEntities(ctx context.Context, workspaceID string) (int, error)

	// EntitiesForDocument returns every canonical entity mentioned by a
	// document, with that document's mentions attached.
	EntitiesForDocument(ctx context.Context, workspaceID, documentID string) ([]DocumentEntity, error)

	// DocumentsMentioning returns IDs of documents that mention the entity,
	// excluding excludeDocumentID, capped at limit.
	DocumentsMentioning(ctx context.Context, entityID, excludeDocumentID string, limit int) ([]string, error)

	// MentionsForDocument returns up to limit mentions within a document.
	MentionsForDocument(ctx context.Context, documentID string, limit int) ([]domain.Mention, error)

	// GetEntity retrieves an entity by ID, or domain.ErrNotFound.
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)

	// ListEntities returns all entities in a workspace, for index resync.
	ListEntities(ctx context.Context, workspaceID string) ([]domain.Entity, error)

	// DeleteDocumentMentions removes all of a document's mentions and
	// decrements the affected entities' mention and document counts.
	// Used when the owning document is deleted.
	DeleteDocumentMentions(ctx context.Context, workspaceID, documentID string) error
}
