package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

func TestSanitizeMatchQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two tokens", "hello world", `"hello" "world"`},
		{"internal quotes doubled", `say "hi"`, `"say" """hi"""`},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"fts operators neutralised", "acme AND corp*", `"acme" "AND" "corp*"`},
		{"column filter neutralised", "title:acme", `"title:acme"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeMatchQuery(tt.input))
		})
	}
}

func TestNormalizeRank(t *testing.T) {
	// FTS5 rank is negative-is-better and unbounded.
	assert.Equal(t, 0.5, normalizeRank(-5))
	assert.Equal(t, 1.0, normalizeRank(-25))
	// Weak matches never fall below the floor.
	assert.Equal(t, 0.1, normalizeRank(-0.2))
	assert.Equal(t, 0.1, normalizeRank(0))
}

func TestTextIndex_SyncAndSearchDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID:  "d1",
		WorkspaceID: "ws1",
		Title:       "March Invoice",
		ContentText: "acme corp monthly retainer",
	}))
	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID:  "d2",
		WorkspaceID: "ws2",
		Title:       "Other Workspace",
		ContentText: "acme corp elsewhere",
	}))

	hits, err := index.SearchDocuments(ctx, "ws1", "acme", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocumentID)
	assert.Equal(t, "March Invoice", hits[0].Title)
	assert.GreaterOrEqual(t, hits[0].Score, 0.1)
	assert.LessOrEqual(t, hits[0].Score, 1.0)
	assert.Contains(t, hits[0].Snippet, "<mark>acme</mark>")
}

func TestTextIndex_SyncReplacesRecord(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID: "d1", WorkspaceID: "ws1", Title: "Old", ContentText: "oldword",
	}))
	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID: "d1", WorkspaceID: "ws1", Title: "New", ContentText: "newword",
	}))

	hits, err := index.SearchDocuments(ctx, "ws1", "oldword", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = index.SearchDocuments(ctx, "ws1", "newword", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "New", hits[0].Title)
}

func TestTextIndex_EmptyQueryIsNoQuery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	hits, err := index.SearchDocuments(ctx, "ws1", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	entityHits, err := index.SearchEntities(ctx, "ws1", "", 10)
	require.NoError(t, err)
	assert.Empty(t, entityHits)
}

func TestTextIndex_QueryInjectionNeutralised(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID: "d1", WorkspaceID: "ws1", Title: "Doc", ContentText: "plain content",
	}))

	// Operator-looking input is treated as literal phrases, not grammar.
	for _, query := range []string{`"unterminated`, "NEAR(a b)", "content NOT plain", "col:value"} {
		_, err := index.SearchDocuments(ctx, "ws1", query, 10)
		require.NoError(t, err, "query %q", query)
	}
}

func TestTextIndex_SearchEntities(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	require.NoError(t, index.SyncEntities(ctx, []driven.IndexEntity{
		{EntityID: "e1", WorkspaceID: "ws1", Name: "Acme Corp", Aliases: "acme incorporated"},
		{EntityID: "e2", WorkspaceID: "ws1", Name: "Bob Smith"},
	}))

	hits, err := index.SearchEntities(ctx, "ws1", "acme", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e1", hits[0].EntityID)
	assert.Equal(t, "Acme Corp", hits[0].Name)

	require.NoError(t, index.RemoveEntity(ctx, "ws1", "e1"))
	hits, err = index.SearchEntities(ctx, "ws1", "acme", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestTextIndex_RemoveDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	index := store.TextIndex()

	require.NoError(t, index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID: "d1", WorkspaceID: "ws1", Title: "Doc", ContentText: "searchable text",
	}))
	require.NoError(t, index.RemoveDocument(ctx, "ws1", "d1"))

	hits, err := index.SearchDocuments(ctx, "ws1", "searchable", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
