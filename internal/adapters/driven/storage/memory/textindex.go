package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// Ensure TextIndex implements the interface.
var _ driven.TextIndex = (*TextIndex)(nil)

// TextIndex is an in-memory implementation of driven.TextIndex using naive
// substring matching. Scoring is term-overlap based; good enough for tests,
// not for production.
type TextIndex struct {
	mu       sync.RWMutex
	docs     map[catalogKey]driven.IndexDocument
	entities map[catalogKey]driven.IndexEntity
}

// NewTextIndex creates a new in-memory text index.
func NewTextIndex() *TextIndex {
	return &TextIndex{
		docs:     make(map[catalogKey]driven.IndexDocument),
		entities: make(map[catalogKey]driven.IndexEntity),
	}
}

// SyncDocument replaces the index record for one document.
func (ti *TextIndex) SyncDocument(_ context.Context, doc driven.IndexDocument) error {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.docs[catalogKey{doc.WorkspaceID, doc.DocumentID}] = doc
	return nil
}

// SyncDocuments replaces a batch of document records.
func (ti *TextIndex) SyncDocuments(ctx context.Context, docs []driven.IndexDocument) error {
	for _, doc := range docs {
		if err := ti.SyncDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// SyncEntity replaces the index record for one entity.
func (ti *TextIndex) SyncEntity(_ context.Context, entity driven.IndexEntity) error {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.entities[catalogKey{entity.WorkspaceID, entity.EntityID}] = entity
	return nil
}

// SyncEntities replaces a batch of entity records.
func (ti *TextIndex) SyncEntities(ctx context.Context, entities []driven.IndexEntity) error {
	for _, entity := range entities {
		if err := ti.SyncEntity(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocument removes a document's index record.
func (ti *TextIndex) RemoveDocument(_ context.Context, workspaceID, documentID string) error {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	delete(ti.docs, catalogKey{workspaceID, documentID})
	return nil
}

// RemoveEntity removes an entity's index record.
func (ti *TextIndex) RemoveEntity(_ context.Context, workspaceID, entityID string) error {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	delete(ti.entities, catalogKey{workspaceID, entityID})
	return nil
}

// SearchDocuments runs a term-overlap query over document records.
func (ti *TextIndex) SearchDocuments(
	_ context.Context, workspaceID, query string, limit int,
) ([]driven.DocumentHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	var hits []driven.DocumentHit
	for key, doc := range ti.docs {
		if key.workspaceID != workspaceID {
			continue
		}
		text := strings.ToLower(doc.Title + " " + doc.ContentText)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, driven.DocumentHit{
			DocumentID: doc.DocumentID,
			Title:      doc.Title,
			Score:      float64(matched) / float64(len(terms)),
			Snippet:    snippetFor(doc.ContentText, terms),
		})
	}

	sortDocumentHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchEntities runs a term-overlap query over entity records.
func (ti *TextIndex) SearchEntities(
	_ context.Context, workspaceID, query string, limit int,
) ([]driven.EntityHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	var hits []driven.EntityHit
	for key, entity := range ti.entities {
		if key.workspaceID != workspaceID {
			continue
		}
		text := strings.ToLower(entity.Name + " " + entity.Aliases)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, driven.EntityHit{
			EntityID: entity.EntityID,
			Name:     entity.Name,
			Score:    float64(matched) / float64(len(terms)),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].EntityID < hits[j].EntityID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// HasDocument reports whether a document record is indexed. Test helper.
func (ti *TextIndex) HasDocument(workspaceID, documentID string) bool {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	_, ok := ti.docs[catalogKey{workspaceID, documentID}]
	return ok
}

// HasEntity reports whether an entity record is indexed. Test helper.
func (ti *TextIndex) HasEntity(workspaceID, entityID string) bool {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	_, ok := ti.entities[catalogKey{workspaceID, entityID}]
	return ok
}

func sortDocumentHits(hits []driven.DocumentHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
}

// snippetFor extracts a short marked-up window around the first term match,
// mirroring the highlight convention of the real backends.
func snippetFor(content string, terms []string) string {
	lower := strings.ToLower(content)
	for _, term := range terms {
		idx := strings.Index(lower, term)
		if idx < 0 {
			continue
		}
		start := idx - 40
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + 40
		if end > len(content) {
			end = len(content)
		}
		return content[start:idx] + "<mark>" + content[idx:idx+len(term)] + "</mark>" + content[idx+len(term):end]
	}
	return ""
}
