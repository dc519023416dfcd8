package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// Ensure Catalog implements the interface.
var _ driven.DocumentCatalog = (*Catalog)(nil)

// catalogKey scopes documents per workspace.
type catalogKey struct {
	workspaceID string
	documentID  string
}

// Catalog is an in-memory implementation of driven.DocumentCatalog.
type Catalog struct {
	mu   sync.RWMutex
	docs map[catalogKey]domain.Document
}

// NewCatalog creates a new in-memory document catalog.
func NewCatalog() *Catalog {
	return &Catalog{docs: make(map[catalogKey]domain.Document)}
}

// SaveDocument stores or replaces a document snapshot.
func (c *Catalog) SaveDocument(_ context.Context, doc domain.Document) error {
	if doc.ID == "" || doc.WorkspaceID == "" {
		return domain.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[catalogKey{doc.WorkspaceID, doc.ID}] = doc
	return nil
}

// GetDocument retrieves a document snapshot.
func (c *Catalog) GetDocument(_ context.Context, workspaceID, documentID string) (*domain.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[catalogKey{workspaceID, documentID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns all document snapshots in a workspace.
func (c *Catalog) ListDocuments(_ context.Context, workspaceID string) ([]domain.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var docs []domain.Document //nolint:prealloc // size unknown
	for key, doc := range c.docs {
		if key.workspaceID == workspaceID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// DeleteDocument removes a document snapshot.
func (c *Catalog) DeleteDocument(_ context.Context, workspaceID, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, catalogKey{workspaceID, documentID})
	return nil
}
