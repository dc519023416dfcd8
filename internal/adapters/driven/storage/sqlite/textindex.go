package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// textIndex implements driven.TextIndex over FTS5 virtual tables.
type textIndex struct {
	store *Store
}

var _ driven.TextIndex = (*textIndex)(nil)

// snippetTokens bounds the snippet window returned per hit.
const snippetTokens = 12

// sanitizeMatchQuery neutralises every operator of the FTS5 query grammar
// by forcing literal-phrase semantics: each whitespace-delimited token is
// wrapped in double quotes, with internal quotes doubled. An empty or
// whitespace-only query normalises to the empty string, which callers
// must treat as "no query".
func sanitizeMatchQuery(query string) string {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		quoted = append(quoted, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// normalizeRank maps FTS5's unbounded negative-is-better rank onto the
// shared 0..1 scale so results are comparable with the other backend.
func normalizeRank(rank float64) float64 {
	score := -rank / 10
	if score < 0.1 {
		return 0.1
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// SyncDocument replaces the index record for one document.
// FTS5 has no safe partial update of indexed columns, so sync is always
// delete-then-insert.
func (ti *textIndex) SyncDocument(ctx context.Context, doc driven.IndexDocument) error {
	return ti.SyncDocuments(ctx, []driven.IndexDocument{doc})
}

// SyncDocuments replaces a batch of document records in one transaction.
func (ti *textIndex) SyncDocuments(ctx context.Context, docs []driven.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := ti.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM docs_fts WHERE doc_id = ? AND workspace_id = ?",
			doc.DocumentID, doc.WorkspaceID); err != nil {
			return fmt.Errorf("deleting document index record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO docs_fts (doc_id, workspace_id, title, content_text)
			VALUES (?, ?, ?, ?)
		`, doc.DocumentID, doc.WorkspaceID, doc.Title, doc.ContentText); err != nil {
			return fmt.Errorf("inserting document index record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document index sync: %w", err)
	}
	return nil
}

// SyncEntity replaces the index record for one entity.
func (ti *textIndex) SyncEntity(ctx context.Context, entity driven.IndexEntity) error {
	return ti.SyncEntities(ctx, []driven.IndexEntity{entity})
}

// SyncEntities replaces a batch of entity records in one transaction.
func (ti *textIndex) SyncEntities(ctx context.Context, entities []driven.IndexEntity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := ti.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, entity := range entities {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entities_fts WHERE entity_id = ? AND workspace_id = ?",
			entity.EntityID, entity.WorkspaceID); err != nil {
			return fmt.Errorf("deleting entity index record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities_fts (entity_id, workspace_id, name, aliases)
			VALUES (?, ?, ?, ?)
		`, entity.EntityID, entity.WorkspaceID, entity.Name, entity.Aliases); err != nil {
			return fmt.Errorf("inserting entity index record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entity index sync: %w", err)
	}
	return nil
}

// RemoveDocument removes a document's index record.
func (ti *textIndex) RemoveDocument(ctx context.Context, workspaceID, documentID string) error {
	_, err := ti.store.db.ExecContext(ctx,
		"DELETE FROM docs_fts WHERE doc_id = ? AND workspace_id = ?", documentID, workspaceID)
	if err != nil {
		return fmt.Errorf("removing document index record: %w", err)
	}
	return nil
}

// RemoveEntity removes an entity's index record.
func (ti *textIndex) RemoveEntity(ctx context.Context, workspaceID, entityID string) error {
	_, err := ti.store.db.ExecContext(ctx,
		"DELETE FROM entities_fts WHERE entity_id = ? AND workspace_id = ?", entityID, workspaceID)
	if err != nil {
		return fmt.Errorf("removing entity index record: %w", err)
	}
	return nil
}

// SearchDocuments runs a sanitized MATCH query over document records.
func (ti *textIndex) SearchDocuments(
	ctx context.Context, workspaceID, query string, limit int,
) ([]driven.DocumentHit, error) {
	sanitized := sanitizeMatchQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := ti.store.db.QueryContext(ctx, `
		SELECT doc_id, title, rank,
			snippet(docs_fts, 3, '<mark>', '</mark>', '…', ?)
		FROM docs_fts
		WHERE docs_fts MATCH ? AND workspace_id = ?
		ORDER BY rank
		LIMIT ?
	`, snippetTokens, sanitized, workspaceID, limit)
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
		hit.Score = normalizeRank(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document hits: %w", err)
	}
	return hits, nil
}

// SearchEntities runs a sanitized MATCH query over entity records.
func (ti *textIndex) SearchEntities(
	ctx context.Context, workspaceID, query string, limit int,
) ([]driven.EntityHit, error) {
	sanitized := sanitizeMatchQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := ti.store.db.QueryContext(ctx, `
		SELECT entity_id, name, rank
		FROM entities_fts
		WHERE entities_fts MATCH ? AND workspace_id = ?
		ORDER BY rank
		LIMIT ?
	`, sanitized, workspaceID, limit)
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
		hit.Score = normalizeRank(rank)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity hits: %w", err)
	}
	return hits, nil
}
