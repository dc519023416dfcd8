package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// TextIndex implements driven.TextIndex on PostgreSQL full-text search.
type TextIndex struct {
	pool *pgxpool.Pool
}

var _ driven.TextIndex = (*TextIndex)(nil)

// NewTextIndex creates a new PostgreSQL text index on an existing pool.
func NewTextIndex(pool *pgxpool.Pool) *TextIndex {
	return &TextIndex{pool: pool}
}

// Connect opens a pool for the given DSN and returns a text index backed
// by it, ensuring the schema exists.
func Connect(ctx context.Context, dsn string) (*TextIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	ti := &TextIndex{pool: pool}
	if err := ti.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ti, nil
}

// Close releases the underlying pool.
func (ti *TextIndex) Close() {
	ti.pool.Close()
}

// EnsureSchema creates the index tables if they do not exist. The search
// vector is a generated column, which is why sync must replace whole rows
// rather than patch them.
func (ti *TextIndex) EnsureSchema(ctx context.Context) error {
	_, err := ti.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS docs_index (
			doc_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content_text TEXT NOT NULL DEFAULT '',
			search_vector tsvector GENERATED ALWAYS AS (
				to_tsvector('english', coalesce(title, '') || ' ' || coalesce(content_text, ''))
			) STORED,
			PRIMARY KEY (workspace_id, doc_id)
		);
		CREATE INDEX IF NOT EXISTS idx_docs_index_vector ON docs_index USING GIN (search_vector);

		CREATE TABLE IF NOT EXISTS entities_index (
			entity_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			aliases TEXT NOT NULL DEFAULT '',
			search_vector tsvector GENERATED ALWAYS AS (
				to_tsvector('english', coalesce(name, '') || ' ' || coalesce(aliases, ''))
			) STORED,
			PRIMARY KEY (workspace_id, entity_id)
		);
		CREATE INDEX IF NOT EXISTS idx_entities_index_vector ON entities_index USING GIN (search_vector);
	`)
	if err != nil {
		return fmt.Errorf("ensuring index schema: %w", err)
	}
	return nil
}

// SyncDocument replaces the index record for one document.
func (ti *TextIndex) SyncDocument(ctx context.Context, doc driven.IndexDocument) error {
	return ti.SyncDocuments(ctx, []driven.IndexDocument{doc})
}

// SyncDocuments replaces a batch of document records in one transaction.
func (ti *TextIndex) SyncDocuments(ctx context.Context, docs []driven.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := ti.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, doc := range docs {
		if _, err := tx.Exec(ctx,
			"DELETE FROM docs_index WHERE workspace_id = $1 AND doc_id = $2",
			doc.WorkspaceID, doc.DocumentID); err != nil {
			return fmt.Errorf("deleting document index record: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO docs_index (doc_id, workspace_id, title, content_text)
			VALUES ($1, $2, $3, $4)
		`, doc.DocumentID, doc.WorkspaceID, doc.Title, doc.ContentText); err != nil {
			return fmt.Errorf("inserting document index record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing document index sync: %w", err)
	}
	return nil
}

// SyncEntity replaces the index record for one entity.
func (ti *TextIndex) SyncEntity(ctx context.Context, entity driven.IndexEntity) error {
	return ti.SyncEntities(ctx, []driven.IndexEntity{entity})
}

// SyncEntities replaces a batch of entity records in one transaction.
func (ti *TextIndex) SyncEntities(ctx context.Context, entities []driven.IndexEntity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := ti.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, entity := range entities {
		if _, err := tx.Exec(ctx,
			"DELETE FROM entities_index WHERE workspace_id = $1 AND entity_id = $2",
			entity.WorkspaceID, entity.EntityID); err != nil {
			return fmt.Errorf("deleting entity index record: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO entities_index (entity_id, workspace_id, name, aliases)
			VALUES ($1, $2, $3, $4)
		`, entity.EntityID, entity.WorkspaceID, entity.Name, entity.Aliases); err != nil {
			return fmt.Errorf("inserting entity index record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing entity index sync: %w", err)
	}
	return nil
}

// RemoveDocument removes a document's index record.
func (ti *TextIndex) RemoveDocument(ctx context.Context, workspaceID, documentID string) error {
	_, err := ti.pool.Exec(ctx,
		"DELETE FROM docs_index WHERE workspace_id = $1 AND doc_id = $2", workspaceID, documentID)
	if err != nil {
		return fmt.Errorf("removing document index record: %w", err)
	}
	return nil
}

// RemoveEntity removes an entity's index record.
func (ti *TextIndex) RemoveEntity(ctx context.Context, workspaceID, entityID string) error {
	_, err := ti.pool.Exec(ctx,
		"DELETE FROM entities_index WHERE workspace_id = $1 AND entity_id = $2", workspaceID, entityID)
	if err != nil {
		return fmt.Errorf("removing entity index record: %w", err)
	}
	return nil
}

// SearchDocuments runs a full-text query over document records.
// plainto_tsquery parses the raw input as plain phrases, giving the same
// injection-safety the embedded backend achieves by quoting tokens.
func (ti *TextIndex) SearchDocuments(
	ctx context.Context, workspaceID, query string, limit int,
) ([]driven.DocumentHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := ti.pool.Query(ctx, `
		SELECT doc_id, title,
			ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank,
			ts_headline('english', content_text, plainto_tsquery('english', $1),
				'StartSel=<mark>, StopSel=</mark>, MaxWords=18, MinWords=6')
		FROM docs_index
		WHERE workspace_id = $2 AND search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $3
	`, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var hits []driven.DocumentHit
	for rows.Next() {
		var hit driven.DocumentHit
		var rank float64
		if err := rows.Scan(&hit.DocumentID, &hit.Title, &rank, &hit.Snippet); err != nil {
			return nil, fmt.Errorf("scanning document hit: %w", err)
		}
		hit.Score = clampScore(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document hits: %w", err)
	}
	return hits, nil
}

// SearchEntities runs a full-text query over entity records.
func (ti *TextIndex) SearchEntities(
	ctx context.Context, workspaceID, query string, limit int,
) ([]driven.EntityHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := ti.pool.Query(ctx, `
		SELECT entity_id, name,
			ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM entities_index
		WHERE workspace_id = $2 AND search_vector @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $3
	`, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	var hits []driven.EntityHit
	for rows.Next() {
		var hit driven.EntityHit
		var rank float64
		if err := rows.Scan(&hit.EntityID, &hit.Name, &rank); err != nil {
			return nil, fmt.Errorf("scanning entity hit: %w", err)
		}
		hit.Score = clampScore(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity hits: %w", err)
	}
	return hits, nil
}

// clampScore maps ts_rank output onto the shared 0..1 scale with the
// same floor as the embedded backend.
func clampScore(rank float64) float64 {
	if rank < 0.1 {
		return 0.1
	}
	if rank > 1.0 {
		return 1.0
	}
	return rank
}
