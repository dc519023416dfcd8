package domain

import "time"

// Connection explains why a related document was surfaced: one shared
// canonical entity and the importance weight it contributed.
type Connection struct {
	// EntityID is the shared entity.
	EntityID string

	// Name is the entity display name.
	Name string

	// Type is the entity type.
	Type EntityType

	// Weight is the inverse-document-frequency style importance weight
	// the entity contributed to the candidate's score.
	Weight float64
}

// RelatedDocument is one ranked entry in a related-documents result.
type RelatedDocument struct {
	// DocumentID is the candidate document.
	DocumentID string

	// Title is the candidate's display title, when known.
	Title string

	// Relevance is the normalised 0..1 score.
	Relevance float64

	// SharedEntities lists the entities connecting the candidate to the
	// source document.
	SharedEntities []Connection

	// Reason is the optional AI-provided explanation. Empty when the
	// deterministic ranking was used unchanged.
	Reason string
}

// RelatedResult is the outcome of one related-documents query.
type RelatedResult struct {
	// SourceDocumentID is the document the query started from.
	SourceDocumentID string

	// EntityCount is the number of canonical entities mentioned by the
	// source document. Zero means an empty result, which is valid.
	EntityCount int

	// Documents is the ranked candidate list, best first.
	Documents []RelatedDocument

	// Reranked is true when the AI re-rank was applied.
	Reranked bool

	// Notes carries non-fatal diagnostics about degradations that occurred.
	Notes []string
}

// RelatedOptions configures a related-documents query.
type RelatedOptions struct {
	// Limit is the maximum number of results (default 10).
	Limit int

	// SkipRerank disables the AI re-rank even when a composer is available.
	SkipRerank bool
}

// Question is one natural-language query against a workspace.
type Question struct {
	// WorkspaceID scopes the search.
	WorkspaceID string

	// UserID is the initiating user, recorded in the query log.
	UserID string

	// Query is the natural-language question.
	Query string

	// Timeout overrides the overall pipeline deadline when positive.
	Timeout time.Duration
}

// SearchResultEntry is one cited document in a search answer.
type SearchResultEntry struct {
	// DocumentID is the cited document.
	DocumentID string

	// Title is the document's display title, when known.
	Title string

	// Relevance is the normalised 0..1 score.
	Relevance float64

	// Entities lists entity names the synthesis associated with this hit.
	Entities []string

	// Reason is the synthesis explanation for the citation.
	Reason string

	// Snippet is the index-provided highlight, when available.
	Snippet string
}

// SearchAnswer is the outcome of one semantic-search execution.
type SearchAnswer struct {
	// Query echoes the question asked.
	Query string

	// Answer is the synthesised free-text answer.
	Answer string

	// Results is the cited document list, best first.
	Results []SearchResultEntry

	// Elapsed is the total pipeline execution time.
	Elapsed time.Duration

	// FellBack is true when the global-timeout keyword fallback produced
	// the answer instead of the full pipeline.
	FellBack bool

	// Notes carries non-fatal diagnostics about degradations that occurred.
	Notes []string
}

// HarvestResult reports the outcome of harvesting one extraction payload.
type HarvestResult struct {
	// DocumentID is the harvested document.
	DocumentID string

	// EntitiesCreated counts canonical entities created by this pass.
	EntitiesCreated int

	// EntitiesReused counts existing entities matched by this pass.
	EntitiesReused int

	// MentionsCreated counts mentions inserted by this pass.
	MentionsCreated int

	// MentionsSkipped counts duplicate mentions ignored by this pass.
	MentionsSkipped int

	// ByType breaks down processed raw entities per entity type.
	ByType map[EntityType]int

	// LimitReached is true when the workspace entity ceiling stopped
	// new-entity creation partway through the batch.
	LimitReached bool

	// Errors aggregates non-fatal per-entity failures. The batch never
	// aborts on these.
	Errors []string
}

// ResyncStats reports the outcome of a batched full-workspace index rebuild.
type ResyncStats struct {
	Documents int
	Entities  int
	Batches   int
}
