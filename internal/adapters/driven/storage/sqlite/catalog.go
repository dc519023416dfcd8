package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// catalogStore implements driven.DocumentCatalog.
type catalogStore struct {
	store *Store
}

var _ driven.DocumentCatalog = (*catalogStore)(nil)

// SaveDocument stores or replaces a document snapshot.
func (s *catalogStore) SaveDocument(ctx context.Context, doc domain.Document) error {
	extractionJSON, err := json.Marshal(doc.Extraction)
	if err != nil {
		return fmt.Errorf("marshalling extraction: %w", err)
	}

	doc.UpdatedAt = time.Now().UTC()
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, workspace_id, title, type, extraction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			extraction = excluded.extraction,
			updated_at = excluded.updated_at
	`, doc.ID, doc.WorkspaceID, doc.Title, doc.Type, string(extractionJSON), doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document snapshot.
func (s *catalogStore) GetDocument(ctx context.Context, workspaceID, documentID string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, type, extraction, updated_at
		FROM documents WHERE workspace_id = ? AND id = ?
	`, workspaceID, documentID)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all document snapshots in a workspace.
func (s *catalogStore) ListDocuments(ctx context.Context, workspaceID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, type, extraction, updated_at
		FROM documents WHERE workspace_id = ?
		ORDER BY id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document snapshot.
func (s *catalogStore) DeleteDocument(ctx context.Context, workspaceID, documentID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM documents WHERE workspace_id = ? AND id = ?", workspaceID, documentID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// scanDocument scans one document row via the given scan function.
func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var extractionJSON string
	var updatedAt sql.NullTime
	if err := scan(&doc.ID, &doc.WorkspaceID, &doc.Title, &doc.Type,
		&extractionJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if extractionJSON != "" && extractionJSON != jsonNull {
		if err := json.Unmarshal([]byte(extractionJSON), &doc.Extraction); err != nil {
			return nil, fmt.Errorf("unmarshaling extraction: %w", err)
		}
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}
