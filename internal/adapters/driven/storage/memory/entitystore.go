package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

// Ensure EntityStore implements the interface.
var _ driven.EntityStore = (*EntityStore)(nil)

// entityKey is the uniqueness key for canonical entities.
type entityKey struct {
	workspaceID    string
	entityType     domain.EntityType
	normalizedName string
}

// mentionKey is the uniqueness key for mentions.
type mentionKey struct {
	entityID   string
	documentID string
	fieldPath  string
}

// EntityStore is an in-memory implementation of driven.EntityStore.
type EntityStore struct {
	mu       sync.RWMutex
	entities map[string]*domain.Entity // by ID
	byKey    map[entityKey]string      // uniqueness index
	mentions map[mentionKey]*domain.Mention
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		entities: make(map[string]*domain.Entity),
		byKey:    make(map[entityKey]string),
		mentions: make(map[mentionKey]*domain.Mention),
	}
}

// FindOrCreate returns the entity for the uniqueness key, creating it if absent.
func (s *EntityStore) FindOrCreate(_ context.Context, entity domain.Entity) (*domain.Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey{entity.WorkspaceID, entity.Type, entity.NormalizedName}
	if id, ok := s.byKey[key]; ok {
		existing := *s.entities[id]
		return &existing, false, nil
	}

	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	stored := entity
	s.entities[stored.ID] = &stored
	s.byKey[key] = stored.ID

	created := stored
	return &created, true, nil
}

// Find returns the entity for the uniqueness key, or domain.ErrNotFound.
func (s *EntityStore) Find(
	_ context.Context, workspaceID string, entityType domain.EntityType, normalizedName string,
) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[entityKey{workspaceID, entityType, normalizedName}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	entity := *s.entities[id]
	return &entity, nil
}

// AddMention inserts a mention unless the uniqueness key exists, bumping
// the owning entity's counts on insert.
func (s *EntityStore) AddMention(_ context.Context, mention domain.Mention) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mentionKey{mention.EntityID, mention.DocumentID, mention.FieldPath}
	if _, ok := s.mentions[key]; ok {
		return false, nil
	}

	entity, ok := s.entities[mention.EntityID]
	if !ok {
		return false, domain.ErrNotFound
	}

	firstForDocument := true
	for k := range s.mentions {
		if k.entityID == mention.EntityID && k.documentID == mention.DocumentID {
			firstForDocument = false
			break
		}
	}

	if mention.ID == "" {
		mention.ID = uuid.NewString()
	}
	mention.CreatedAt = time.Now().UTC()
	stored := mention
	s.mentions[key] = &stored

	entity.MentionCount++
	if firstForDocument {
		entity.DocumentCount++
	}
	entity.UpdatedAt = time.Now().UTC()

	return true, nil
}

// CountEntities returns the number of entities in a workspace.
func (s *EntityStore) CountEntities(_ context.Context, workspaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entities {
		if e.WorkspaceID == workspaceID {
			count++
		}
	}
	return count, nil
}

// EntitiesForDocument returns every entity mentioned by a document.
func (s *EntityStore) EntitiesForDocument(
	_ context.Context, workspaceID, documentID string,
) ([]driven.DocumentEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEntity := make(map[string][]domain.Mention)
	for key, m := range s.mentions {
		if key.documentID == documentID {
			byEntity[key.entityID] = append(byEntity[key.entityID], *m)
		}
	}

	var results []driven.DocumentEntity //nolint:prealloc // size unknown
	for entityID, mentions := range byEntity {
		entity, ok := s.entities[entityID]
		if !ok || entity.WorkspaceID != workspaceID {
			continue
		}
		results = append(results, driven.DocumentEntity{Entity: *entity, Mentions: mentions})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Entity.ID < results[j].Entity.ID
	})
	return results, nil
}

// DocumentsMentioning returns document IDs mentioning an entity.
func (s *EntityStore) DocumentsMentioning(
	_ context.Context, entityID, excludeDocumentID string, limit int,
) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var docs []string
	for key := range s.mentions {
		if key.entityID != entityID || key.documentID == excludeDocumentID || seen[key.documentID] {
			continue
		}
		seen[key.documentID] = true
		docs = append(docs, key.documentID)
	}

	sort.Strings(docs)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// MentionsForDocument returns up to limit mentions within a document.
func (s *EntityStore) MentionsForDocument(
	_ context.Context, documentID string, limit int,
) ([]domain.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mentions []domain.Mention
	for key, m := range s.mentions {
		if key.documentID == documentID {
			mentions = append(mentions, *m)
		}
	}

	sort.Slice(mentions, func(i, j int) bool { return mentions[i].FieldPath < mentions[j].FieldPath })
	if limit > 0 && len(mentions) > limit {
		mentions = mentions[:limit]
	}
	return mentions, nil
}

// GetEntity retrieves an entity by ID.
func (s *EntityStore) GetEntity(_ context.Context, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *entity
	return &copied, nil
}

// ListEntities returns all entities in a workspace.
func (s *EntityStore) ListEntities(_ context.Context, workspaceID string) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entities []domain.Entity //nolint:prealloc // size unknown
	for _, e := range s.entities {
		if e.WorkspaceID == workspaceID {
			entities = append(entities, *e)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities, nil
}

// DeleteDocumentMentions removes a document's mentions and decrements
// counts. Only mentions owned by entities in the given workspace are
// touched; another workspace's document with the same ID is unaffected.
func (s *EntityStore) DeleteDocumentMentions(_ context.Context, workspaceID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removedPerEntity := make(map[string]int)
	for key := range s.mentions {
		if key.documentID != documentID {
			continue
		}
		entity, ok := s.entities[key.entityID]
		if !ok || entity.WorkspaceID != workspaceID {
			continue
		}
		removedPerEntity[key.entityID]++
		delete(s.mentions, key)
	}

	for entityID, count := range removedPerEntity {
		entity := s.entities[entityID]
		entity.MentionCount -= count
		if entity.MentionCount < 0 {
			entity.MentionCount = 0
		}
		if entity.DocumentCount > 0 {
			entity.DocumentCount--
		}
		entity.UpdatedAt = time.Now().UTC()
	}
	return nil
}
