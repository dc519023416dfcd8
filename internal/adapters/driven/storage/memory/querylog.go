package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// Ensure QueryLogStore implements the interface.
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// QueryLogStore is an in-memory implementation of driven.QueryLogStore.
type QueryLogStore struct {
	mu      sync.RWMutex
	entries []domain.QueryLogEntry
}

// NewQueryLogStore creates a new in-memory query log store.
func NewQueryLogStore() *QueryLogStore {
	return &QueryLogStore{}
}

// Append writes one query log entry.
func (s *QueryLogStore) Append(_ context.Context, entry domain.QueryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

// ListByWorkspace returns up to limit entries for a workspace, newest first.
func (s *QueryLogStore) ListByWorkspace(
	_ context.Context, workspaceID string, limit int,
) ([]domain.QueryLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.QueryLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].WorkspaceID != workspaceID {
			continue
		}
		entries = append(entries, s.entries[i])
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// Len returns the total number of stored entries. Test helper.
func (s *QueryLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
