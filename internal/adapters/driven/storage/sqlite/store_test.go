package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "knowledge-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}
	return store, cleanup
}

func TestNewStore_RunsMigrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	row := store.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	require.NoError(t, row.Scan(&version))
	assert.GreaterOrEqual(t, version, 1)

	// Reopening an existing database is a no-op for applied migrations.
	again, err := NewStore(store.Path()[:len(store.Path())-len("/knowledge.db")])
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}

func TestEntityStore_FindOrCreate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	entities := store.EntityStore()

	first, created, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID:    "ws1",
		Type:           domain.EntityTypeOrganization,
		Name:           "Acme Corp",
		NormalizedName: "acme corp",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	// Same normalized name fetches the existing row.
	second, created, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID:    "ws1",
		Type:           domain.EntityTypeOrganization,
		Name:           "ACME CORP",
		NormalizedName: "acme corp",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different type is a different entity.
	_, created, err = entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID:    "ws1",
		Type:           domain.EntityTypePerson,
		Name:           "Acme Corp",
		NormalizedName: "acme corp",
	})
	require.NoError(t, err)
	assert.True(t, created)

	count, err := entities.CountEntities(ctx, "ws1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEntityStore_Find_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.EntityStore().Find(context.Background(), "ws1", domain.EntityTypePerson, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntityStore_AddMention(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	entities := store.EntityStore()

	entity, _, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID:    "ws1",
		Type:           domain.EntityTypePerson,
		Name:           "Bob Smith",
		NormalizedName: "bob smith",
	})
	require.NoError(t, err)

	added, err := entities.AddMention(ctx, domain.Mention{
		EntityID:   entity.ID,
		DocumentID: "doc1",
		FieldPath:  "attendees[0]",
		Confidence: 0.9,
		Source:     "extraction",
	})
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate (entity, document, field path) is ignored.
	added, err = entities.AddMention(ctx, domain.Mention{
		EntityID:   entity.ID,
		DocumentID: "doc1",
		FieldPath:  "attendees[0]",
	})
	require.NoError(t, err)
	assert.False(t, added)

	// A second field path in the same document bumps mention count only.
	added, err = entities.AddMention(ctx, domain.Mention{
		EntityID:   entity.ID,
		DocumentID: "doc1",
		FieldPath:  "actionItems[0].assignee",
	})
	require.NoError(t, err)
	assert.True(t, added)

	// A mention in another document bumps both counts.
	added, err = entities.AddMention(ctx, domain.Mention{
		EntityID:   entity.ID,
		DocumentID: "doc2",
		FieldPath:  "attendees[0]",
	})
	require.NoError(t, err)
	assert.True(t, added)

	got, err := entities.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MentionCount)
	assert.Equal(t, 2, got.DocumentCount)
}

func TestEntityStore_EntitiesForDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	entities := store.EntityStore()

	bob, _, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID: "ws1", Type: domain.EntityTypePerson, Name: "Bob Smith", NormalizedName: "bob smith",
	})
	require.NoError(t, err)
	acme, _, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID: "ws1", Type: domain.EntityTypeOrganization, Name: "Acme Corp", NormalizedName: "acme corp",
	})
	require.NoError(t, err)

	for _, m := range []domain.Mention{
		{EntityID: bob.ID, DocumentID: "doc1", FieldPath: "attendees[0]", Context: "meeting attendee"},
		{EntityID: bob.ID, DocumentID: "doc1", FieldPath: "actionItems[0].assignee"},
		{EntityID: acme.ID, DocumentID: "doc1", FieldPath: "vendor"},
		{EntityID: acme.ID, DocumentID: "doc2", FieldPath: "vendor"},
	} {
		_, err := entities.AddMention(ctx, m)
		require.NoError(t, err)
	}

	result, err := entities.EntitiesForDocument(ctx, "ws1", "doc1")
	require.NoError(t, err)
	require.Len(t, result, 2)

	byName := make(map[string]int)
	for _, de := range result {
		byName[de.Entity.Name] = len(de.Mentions)
	}
	assert.Equal(t, 2, byName["Bob Smith"])
	assert.Equal(t, 1, byName["Acme Corp"])
}

func TestEntityStore_DocumentsMentioning(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	entities := store.EntityStore()

	acme, _, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID: "ws1", Type: domain.EntityTypeOrganization, Name: "Acme Corp", NormalizedName: "acme corp",
	})
	require.NoError(t, err)

	for _, docID := range []string{"src", "c1", "c2", "c3"} {
		_, err := entities.AddMention(ctx, domain.Mention{
			EntityID: acme.ID, DocumentID: docID, FieldPath: "vendor",
		})
		require.NoError(t, err)
	}

	docIDs, err := entities.DocumentsMentioning(ctx, acme.ID, "src", 50)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, docIDs)

	limited, err := entities.DocumentsMentioning(ctx, acme.ID, "src", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEntityStore_DeleteDocumentMentions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	entities := store.EntityStore()

	acme, _, err := entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID: "ws1", Type: domain.EntityTypeOrganization, Name: "Acme Corp", NormalizedName: "acme corp",
	})
	require.NoError(t, err)
	for _, m := range []domain.Mention{
		{EntityID: acme.ID, DocumentID: "doc1", FieldPath: "vendor"},
		{EntityID: acme.ID, DocumentID: "doc1", FieldPath: "customer"},
		{EntityID: acme.ID, DocumentID: "doc2", FieldPath: "vendor"},
	} {
		_, err := entities.AddMention(ctx, m)
		require.NoError(t, err)
	}

	require.NoError(t, entities.DeleteDocumentMentions(ctx, "ws1", "doc1"))

	got, err := entities.GetEntity(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MentionCount)
	assert.Equal(t, 1, got.DocumentCount)

	mentions, err := entities.MentionsForDocument(ctx, "doc1", 10)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestCatalog_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	catalog := store.Catalog()

	doc := domain.Document{
		ID:          "doc1",
		WorkspaceID: "ws1",
		Title:       "Services Agreement",
		Type:        domain.DocumentTypeContract,
		Extraction: domain.Extraction{
			Type: domain.DocumentTypeContract,
			Contract: &domain.ContractExtraction{
				Parties:      []domain.ContractParty{{Name: "Acme Corp", Role: "vendor"}},
				GoverningLaw: "Delaware",
			},
		},
	}
	require.NoError(t, catalog.SaveDocument(ctx, doc))

	got, err := catalog.GetDocument(ctx, "ws1", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Services Agreement", got.Title)
	require.NotNil(t, got.Extraction.Contract)
	assert.Equal(t, "Delaware", got.Extraction.Contract.GoverningLaw)

	// Save replaces the snapshot.
	doc.Title = "Amended Agreement"
	require.NoError(t, catalog.SaveDocument(ctx, doc))
	got, err = catalog.GetDocument(ctx, "ws1", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Amended Agreement", got.Title)

	docs, err := catalog.ListDocuments(ctx, "ws1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, catalog.DeleteDocument(ctx, "ws1", "doc1"))
	_, err = catalog.GetDocument(ctx, "ws1", "doc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueryLog_AppendAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	querylog := store.QueryLogStore()

	first := domain.QueryLogEntry{
		WorkspaceID: "ws1",
		UserID:      "u1",
		Query:       "which invoices mention acme?",
		Answer:      "Two invoices mention Acme Corp.",
		ResultCount: 2,
		Results: []domain.SearchResultEntry{
			{DocumentID: "d1", Relevance: 0.9},
			{DocumentID: "d2", Relevance: 0.1},
		},
		Elapsed:   1200 * time.Millisecond,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, querylog.Append(ctx, first))
	require.NoError(t, querylog.Append(ctx, domain.QueryLogEntry{
		WorkspaceID: "ws1",
		Query:       "newer question",
		CreatedAt:   time.Now().UTC(),
	}))

	entries, err := querylog.ListByWorkspace(ctx, "ws1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "newer question", entries[0].Query)
	assert.Equal(t, "which invoices mention acme?", entries[1].Query)
	assert.Equal(t, 2, entries[1].ResultCount)
	require.Len(t, entries[1].Results, 2)
	assert.Equal(t, 1200*time.Millisecond, entries[1].Elapsed)

	limited, err := querylog.ListByWorkspace(ctx, "ws1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
