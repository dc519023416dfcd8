package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/ai/mock"
	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/storage/memory"
	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
)

type searchFixture struct {
	index    *memory.TextIndex
	entities *memory.EntityStore
	catalog  *memory.Catalog
	querylog *memory.QueryLogStore
}

func newSearchFixture() *searchFixture {
	return &searchFixture{
		index:    memory.NewTextIndex(),
		entities: memory.NewEntityStore(),
		catalog:  memory.NewCatalog(),
		querylog: memory.NewQueryLogStore(),
	}
}

func (f *searchFixture) service(composer driven.Composer) *SearchService {
	return NewSearchService(f.index, f.entities, f.catalog, composer, f.querylog)
}

func (f *searchFixture) indexDoc(t *testing.T, id, title, content string) {
	t.Helper()
	require.NoError(t, f.index.SyncDocument(context.Background(), driven.IndexDocument{
		DocumentID:  id,
		WorkspaceID: "ws1",
		Title:       title,
		ContentText: content,
	}))
}

func TestAsk_FullPipeline(t *testing.T) {
	f := newSearchFixture()
	f.indexDoc(t, "d1", "March Invoice", "acme corp monthly retainer")
	f.indexDoc(t, "d2", "April Invoice", "acme corp extra charges")

	composer := &mock.Composer{Responses: []string{
		"acme invoices",
		"ANSWER: Acme Corp appears on two invoices.\n" +
			"RESULT 1: 0.9 - Acme Corp - names the vendor directly",
	}}
	svc := f.service(composer)

	answer, err := svc.Ask(context.Background(), domain.Question{
		WorkspaceID: "ws1",
		UserID:      "u1",
		Query:       "which invoices mention acme?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp appears on two invoices.", answer.Answer)
	assert.False(t, answer.FellBack)
	require.Len(t, answer.Results, 2)

	assert.Equal(t, "d1", answer.Results[0].DocumentID)
	assert.Equal(t, 0.9, answer.Results[0].Relevance)
	assert.Equal(t, []string{"Acme Corp"}, answer.Results[0].Entities)

	// Omitted by the model: floored, never dropped.
	assert.Equal(t, "d2", answer.Results[1].DocumentID)
	assert.Equal(t, 0.1, answer.Results[1].Relevance)

	assert.Equal(t, 2, composer.Calls())
	assert.Equal(t, 1, f.querylog.Len())

	entries, err := f.querylog.ListByWorkspace(context.Background(), "ws1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, 2, entries[0].ResultCount)
}

func TestAsk_NoComposer(t *testing.T) {
	f := newSearchFixture()
	f.indexDoc(t, "d1", "March Invoice", "acme corp retainer")

	svc := f.service(nil)
	answer, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "acme retainer"})
	require.NoError(t, err)

	assert.Equal(t, "Found 1 matching documents.", answer.Answer)
	require.Len(t, answer.Results, 1)
	assert.Equal(t, "d1", answer.Results[0].DocumentID)
	assert.Equal(t, 1, f.querylog.Len())
}

func TestAsk_ZeroCandidates(t *testing.T) {
	f := newSearchFixture()
	svc := f.service(nil)

	answer, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "nothing matches this"})
	require.NoError(t, err)

	assert.Equal(t, "No matching documents found.", answer.Answer)
	assert.Empty(t, answer.Results)
	// The log entry is written even when nothing was found.
	assert.Equal(t, 1, f.querylog.Len())
}

func TestAsk_EntityHitPlaceholderRank(t *testing.T) {
	f := newSearchFixture()
	ctx := context.Background()

	entity := seedEntity(t, f.entities, "Acme Corp", "d9")
	require.NoError(t, f.index.SyncEntity(ctx, driven.IndexEntity{
		EntityID:    entity.ID,
		WorkspaceID: "ws1",
		Name:        "Acme Corp",
	}))

	svc := f.service(nil)
	answer, err := svc.Ask(ctx, domain.Question{WorkspaceID: "ws1", Query: "acme"})
	require.NoError(t, err)

	require.Len(t, answer.Results, 1)
	assert.Equal(t, "d9", answer.Results[0].DocumentID)
	assert.Equal(t, entityHitPlaceholderRank, answer.Results[0].Relevance)
}

func TestAsk_TermExtractionFallsBack(t *testing.T) {
	f := newSearchFixture()
	f.indexDoc(t, "d1", "March Invoice", "acme corp retainer")

	// First call (term extraction) errors; the pipeline tokenizes the raw
	// query instead, discarding short words.
	composer := &mock.Composer{Err: errors.New("model unavailable")}
	svc := f.service(composer)

	answer, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "is acme a retainer"})
	require.NoError(t, err)

	require.Len(t, answer.Results, 1)
	assert.Equal(t, "d1", answer.Results[0].DocumentID)
	assert.NotEmpty(t, answer.Notes)
	assert.Equal(t, 1, f.querylog.Len())
}

func TestAsk_UnparseableSynthesisFallsBack(t *testing.T) {
	f := newSearchFixture()
	f.indexDoc(t, "d1", "March Invoice", "acme corp retainer")

	composer := &mock.Composer{Responses: []string{"acme", "I have no structured opinion."}}
	svc := f.service(composer)

	answer, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "acme documents"})
	require.NoError(t, err)

	assert.Equal(t, "Found 1 matching documents.", answer.Answer)
	assert.Contains(t, answer.Notes, "synthesis fell back: unparseable response")
	require.Len(t, answer.Results, 1)
	assert.Equal(t, 1, f.querylog.Len())
}

// stallingIndex blocks the first document search until the caller's
// context dies, simulating a slow backend that trips the pipeline
// deadline. Later calls (the fallback path) pass through.
type stallingIndex struct {
	*memory.TextIndex
	stalled atomic.Bool
}

func (si *stallingIndex) SearchDocuments(
	ctx context.Context, workspaceID, query string, limit int,
) ([]driven.DocumentHit, error) {
	if si.stalled.CompareAndSwap(false, true) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return si.TextIndex.SearchDocuments(ctx, workspaceID, query, limit)
}

func TestAsk_GlobalTimeoutFallback(t *testing.T) {
	f := newSearchFixture()
	f.indexDoc(t, "d1", "March Invoice", "acme corp retainer")

	index := &stallingIndex{TextIndex: f.index}
	svc := NewSearchService(index, f.entities, f.catalog, nil, f.querylog)

	answer, err := svc.Ask(context.Background(), domain.Question{
		WorkspaceID: "ws1",
		Query:       "acme retainer",
		Timeout:     50 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, answer.FellBack)
	assert.Equal(t, "Search timed out; showing keyword matches.", answer.Answer)
	require.Len(t, answer.Results, 1)
	assert.Equal(t, "d1", answer.Results[0].DocumentID)
	assert.Equal(t, 1, f.querylog.Len())
}

// failingIndex errors on every search.
type failingIndex struct {
	*memory.TextIndex
}

func (fi *failingIndex) SearchDocuments(
	context.Context, string, string, int,
) ([]driven.DocumentHit, error) {
	return nil, errors.New("index offline")
}

func TestAsk_StoreErrorDegrades(t *testing.T) {
	f := newSearchFixture()
	index := &failingIndex{TextIndex: f.index}
	svc := NewSearchService(index, f.entities, f.catalog, nil, f.querylog)

	answer, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "anything"})
	require.NoError(t, err)

	assert.Empty(t, answer.Results)
	assert.NotEmpty(t, answer.Notes)
	assert.Equal(t, 1, f.querylog.Len())
}

func TestAsk_InvalidInput(t *testing.T) {
	f := newSearchFixture()
	svc := f.service(nil)

	_, err := svc.Ask(context.Background(), domain.Question{WorkspaceID: "", Query: "q"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Ask(context.Background(), domain.Question{WorkspaceID: "ws1", Query: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTokenizeQuery(t *testing.T) {
	assert.Equal(t, []string{"acme", "invoices"}, tokenizeQuery("is acme in invoices"))
	// When everything is short the raw tokens survive.
	assert.Equal(t, []string{"a", "b"}, tokenizeQuery("a b"))
}
