package driven

import "context"

// IndexDocument is the denormalised per-document text blob pushed into the
// lexical index. Sync always replaces the whole record (delete-then-insert);
// neither supported engine patches indexed columns in place.
type IndexDocument struct {
	DocumentID  string
	WorkspaceID string
	Title       string
	ContentText string
}

// IndexEntity is the denormalised per-entity text blob pushed into the
// lexical index.
type IndexEntity struct {
	EntityID    string
	WorkspaceID string
	Name        string
	Aliases     string
}

// DocumentHit is one document match from the index.
type DocumentHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Title is the indexed title.
	Title string

	// Score is the backend rank normalised to 0..1 at the adapter boundary,
	// so results from either engine are comparable downstream.
	Score float64

	// Snippet is a bounded highlight using <mark>/</mark> delimiters.
	Snippet string
}

// EntityHit is one entity match from the index.
type EntityHit struct {
	EntityID string
	Name     string
	Score    float64
}

// TextIndex maintains and queries the lexical index over document and
// entity text. Two interchangeable backends implement it: an embedded
// SQLite FTS5 engine and a client-server PostgreSQL tsvector engine.
type TextIndex interface {
	// SyncDocument replaces the index record for one document.
	SyncDocument(ctx context.Context, doc IndexDocument) error

	// SyncDocuments replaces a batch of document records inside one short
	// transaction, bounding lock duration during large rebuilds.
	SyncDocuments(ctx context.Context, docs []IndexDocument) error

	// SyncEntity replaces the index record for one entity.
	SyncEntity(ctx context.Context, entity IndexEntity) error

	// SyncEntities replaces a batch of entity records inside one short
	// transaction.
	SyncEntities(ctx context.Context, entities []IndexEntity) error

	// RemoveDocument removes a document's index record.
	RemoveDocument(ctx context.Context, workspaceID, documentID string) error

	// RemoveEntity removes an entity's index record.
	RemoveEntity(ctx context.Context, workspaceID, entityID string) error

	// SearchDocuments runs a lexical query over document records.
	// An empty or whitespace-only query returns no hits and no error.
	SearchDocuments(ctx context.Context, workspaceID, query string, limit int) ([]DocumentHit, error)

	// SearchEntities runs a lexical query over entity records.
	SearchEntities(ctx context.Context, workspaceID, query string, limit int) ([]EntityHit, error)
}
