package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// queryLogStore implements driven.QueryLogStore.
type queryLogStore struct {
	store *Store
}

var _ driven.QueryLogStore = (*queryLogStore)(nil)

// Append writes one query log entry. Entries are never mutated.
func (s *queryLogStore) Append(ctx context.Context, entry domain.QueryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	resultsJSON, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO query_log (id, workspace_id, user_id, query, answer, result_count, results, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.WorkspaceID, entry.UserID, entry.Query, entry.Answer,
		entry.ResultCount, string(resultsJSON), entry.Elapsed.Milliseconds(), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending query log entry: %w", err)
	}
	return nil
}

// ListByWorkspace returns up to limit entries for a workspace, newest first.
func (s *queryLogStore) ListByWorkspace(
	ctx context.Context, workspaceID string, limit int,
) ([]domain.QueryLogEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, workspace_id, user_id, query, answer, result_count, results, elapsed_ms, created_at
		FROM query_log
		WHERE workspace_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying query log: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueryLogEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.QueryLogEntry
		var resultsJSON string
		var elapsedMs int64
		var createdAt sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.WorkspaceID, &entry.UserID, &entry.Query,
			&entry.Answer, &entry.ResultCount, &resultsJSON, &elapsedMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning query log entry: %w", err)
		}

		if resultsJSON != "" && resultsJSON != jsonNull {
			if err := json.Unmarshal([]byte(resultsJSON), &entry.Results); err != nil {
				return nil, fmt.Errorf("unmarshaling results: %w", err)
			}
		}
		entry.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query log: %w", err)
	}
	return entries, nil
}
