package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// entityStore implements driven.EntityStore.
type entityStore struct {
	store *Store
}

var _ driven.EntityStore = (*entityStore)(nil)

// FindOrCreate returns the canonical entity for (workspace, type,
// normalized name), creating it if absent. The insert relies on the
// table's uniqueness constraint so concurrent callers racing to create the
// same name never double-insert: the loser's insert is a no-op and the
// follow-up select fetches the winner's row.
func (s *entityStore) FindOrCreate(ctx context.Context, entity domain.Entity) (*domain.Entity, bool, error) {
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	aliasesJSON, err := json.Marshal(entity.Aliases)
	if err != nil {
		return nil, false, fmt.Errorf("marshalling aliases: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO entities (id, workspace_id, type, name, normalized_name, aliases,
			mention_count, document_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(workspace_id, type, normalized_name) DO NOTHING
	`, entity.ID, entity.WorkspaceID, entity.Type, entity.Name, entity.NormalizedName,
		string(aliasesJSON), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("inserting entity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking insert result: %w", err)
	}

	found, err := s.Find(ctx, entity.WorkspaceID, entity.Type, entity.NormalizedName)
	if err != nil {
		return nil, false, err
	}
	return found, affected > 0, nil
}

// Find returns the canonical entity for (workspace, type, normalized name).
func (s *entityStore) Find(
	ctx context.Context, workspaceID string, entityType domain.EntityType, normalizedName string,
) (*domain.Entity, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, type, name, normalized_name, aliases,
			mention_count, document_count, created_at, updated_at
		FROM entities
		WHERE workspace_id = ? AND type = ? AND normalized_name = ?
	`, workspaceID, entityType, normalizedName)
	return scanEntity(row)
}

// GetEntity retrieves an entity by ID.
func (s *entityStore) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, type, name, normalized_name, aliases,
			mention_count, document_count, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

// AddMention inserts a mention unless one already exists for the
// (entity, document, field path) triple. The count updates ride in the
// same transaction as the insert so a crash never leaves them out of step.
func (s *entityStore) AddMention(ctx context.Context, mention domain.Mention) (bool, error) {
	if mention.ID == "" {
		mention.ID = uuid.NewString()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		INSERT INTO mentions (id, entity_id, document_id, field_path, context, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, document_id, field_path) DO NOTHING
	`, mention.ID, mention.EntityID, mention.DocumentID, mention.FieldPath,
		mention.Context, mention.Confidence, mention.Source, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("inserting mention: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		// Duplicate harvest pass: nothing changed.
		return false, nil
	}

	// The document count bumps only on the entity's first mention in this
	// document; the mention just inserted makes that count exactly 1.
	var pairMentions int
	row := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mentions WHERE entity_id = ? AND document_id = ?",
		mention.EntityID, mention.DocumentID)
	if err := row.Scan(&pairMentions); err != nil {
		return false, fmt.Errorf("counting document mentions: %w", err)
	}

	docIncrement := 0
	if pairMentions == 1 {
		docIncrement = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE entities
		SET mention_count = mention_count + 1,
			document_count = document_count + ?,
			updated_at = ?
		WHERE id = ?
	`, docIncrement, time.Now().UTC(), mention.EntityID); err != nil {
		return false, fmt.Errorf("updating entity counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing mention: %w", err)
	}
	return true, nil
}

// CountEntities returns the number of canonical entities in a workspace.
func (s *entityStore) CountEntities(ctx context.Context, workspaceID string) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE workspace_id = ?", workspaceID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return count, nil
}

// EntitiesForDocument returns every canonical entity mentioned by a
// document, with that document's mentions attached.
func (s *entityStore) EntitiesForDocument(
	ctx context.Context, workspaceID, documentID string,
) ([]driven.DocumentEntity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.workspace_id, e.type, e.name, e.normalized_name, e.aliases,
			e.mention_count, e.document_count, e.created_at, e.updated_at,
			m.id, m.field_path, m.context, m.confidence, m.source, m.created_at
		FROM mentions m
		JOIN entities e ON e.id = m.entity_id
		WHERE m.document_id = ? AND e.workspace_id = ?
		ORDER BY e.id
	`, documentID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying document entities: %w", err)
	}
	defer rows.Close()

	var result []driven.DocumentEntity
	byID := make(map[string]int)
	for rows.Next() {
		var entity domain.Entity
		var aliasesJSON string
		var createdAt, updatedAt sql.NullTime
		var mention domain.Mention
		var mentionCreated sql.NullTime
		if err := rows.Scan(&entity.ID, &entity.WorkspaceID, &entity.Type, &entity.Name,
			&entity.NormalizedName, &aliasesJSON, &entity.MentionCount, &entity.DocumentCount,
			&createdAt, &updatedAt,
			&mention.ID, &mention.FieldPath, &mention.Context, &mention.Confidence,
			&mention.Source, &mentionCreated); err != nil {
			return nil, fmt.Errorf("scanning document entity: %w", err)
		}
		mention.EntityID = entity.ID
		mention.DocumentID = documentID
		if mentionCreated.Valid {
			mention.CreatedAt = mentionCreated.Time
		}

		idx, ok := byID[entity.ID]
		if !ok {
			if err := finishEntity(&entity, aliasesJSON, createdAt, updatedAt); err != nil {
				return nil, err
			}
			result = append(result, driven.DocumentEntity{Entity: entity})
			idx = len(result) - 1
			byID[entity.ID] = idx
		}
		result[idx].Mentions = append(result[idx].Mentions, mention)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document entities: %w", err)
	}
	return result, nil
}

// DocumentsMentioning returns IDs of documents mentioning the entity,
// excluding excludeDocumentID, capped at limit.
func (s *entityStore) DocumentsMentioning(
	ctx context.Context, entityID, excludeDocumentID string, limit int,
) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT DISTINCT document_id FROM mentions
		WHERE entity_id = ? AND document_id != ?
		ORDER BY document_id
		LIMIT ?
	`, entityID, excludeDocumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying mentioning documents: %w", err)
	}
	defer rows.Close()

	var docIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		docIDs = append(docIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document ids: %w", err)
	}
	return docIDs, nil
}

// MentionsForDocument returns up to limit mentions within a document.
func (s *entityStore) MentionsForDocument(
	ctx context.Context, documentID string, limit int,
) ([]domain.Mention, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, entity_id, document_id, field_path, context, confidence, source, created_at
		FROM mentions
		WHERE document_id = ?
		ORDER BY field_path
		LIMIT ?
	`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying mentions: %w", err)
	}
	defer rows.Close()

	var mentions []domain.Mention
	for rows.Next() {
		var m domain.Mention
		var createdAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.EntityID, &m.DocumentID, &m.FieldPath,
			&m.Context, &m.Confidence, &m.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mention: %w", err)
		}
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time
		}
		mentions = append(mentions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mentions: %w", err)
	}
	return mentions, nil
}

// ListEntities returns all entities in a workspace, for index resync.
func (s *entityStore) ListEntities(ctx context.Context, workspaceID string) ([]domain.Entity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, workspace_id, type, name, normalized_name, aliases,
			mention_count, document_count, created_at, updated_at
		FROM entities WHERE workspace_id = ?
		ORDER BY normalized_name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entity domain.Entity
		var aliasesJSON string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&entity.ID, &entity.WorkspaceID, &entity.Type, &entity.Name,
			&entity.NormalizedName, &aliasesJSON, &entity.MentionCount, &entity.DocumentCount,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		if err := finishEntity(&entity, aliasesJSON, createdAt, updatedAt); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// DeleteDocumentMentions removes all of a document's mentions and rolls
// back the affected entities' counts, all in one transaction.
func (s *entityStore) DeleteDocumentMentions(ctx context.Context, workspaceID, documentID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	rows, err := tx.QueryContext(ctx, `
		SELECT m.entity_id, COUNT(*)
		FROM mentions m
		JOIN entities e ON e.id = m.entity_id
		WHERE m.document_id = ? AND e.workspace_id = ?
		GROUP BY m.entity_id
	`, documentID, workspaceID)
	if err != nil {
		return fmt.Errorf("querying document mention counts: %w", err)
	}

	type entityMentions struct {
		entityID string
		count    int
	}
	var affected []entityMentions
	for rows.Next() {
		var em entityMentions
		if err := rows.Scan(&em.entityID, &em.count); err != nil {
			rows.Close()
			return fmt.Errorf("scanning mention count: %w", err)
		}
		affected = append(affected, em)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating mention counts: %w", err)
	}
	rows.Close()

	now := time.Now().UTC()
	for _, em := range affected {
		if _, err := tx.ExecContext(ctx, `
			UPDATE entities
			SET mention_count = MAX(mention_count - ?, 0),
				document_count = MAX(document_count - 1, 0),
				updated_at = ?
			WHERE id = ?
		`, em.count, now, em.entityID); err != nil {
			return fmt.Errorf("rolling back entity counts: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM mentions
		WHERE document_id = ? AND entity_id IN (SELECT id FROM entities WHERE workspace_id = ?)
	`, documentID, workspaceID); err != nil {
		return fmt.Errorf("deleting mentions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing mention deletion: %w", err)
	}
	return nil
}

// scanEntity scans a single-entity row.
func scanEntity(row *sql.Row) (*domain.Entity, error) {
	var entity domain.Entity
	var aliasesJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&entity.ID, &entity.WorkspaceID, &entity.Type, &entity.Name,
		&entity.NormalizedName, &aliasesJSON, &entity.MentionCount, &entity.DocumentCount,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	if err := finishEntity(&entity, aliasesJSON, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &entity, nil
}

// finishEntity decodes the JSON columns and timestamps.
func finishEntity(entity *domain.Entity, aliasesJSON string, createdAt, updatedAt sql.NullTime) error {
	if aliasesJSON != "" && aliasesJSON != jsonNull {
		if err := json.Unmarshal([]byte(aliasesJSON), &entity.Aliases); err != nil {
			return fmt.Errorf("unmarshaling aliases: %w", err)
		}
	}
	if createdAt.Valid {
		entity.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		entity.UpdatedAt = updatedAt.Time
	}
	return nil
}
