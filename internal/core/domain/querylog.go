package domain

import "time"

// QueryLogEntry is the append-only audit record of one search execution.
// Exactly one entry is written per orchestrator invocation — full success,
// single-stage fallback, or global-timeout fallback — and it is never
// mutated or deleted by this engine.
type QueryLogEntry struct {
	// ID is the unique log entry identifier.
	ID string

	// WorkspaceID scopes the entry.
	WorkspaceID string

	// UserID is the initiating user.
	UserID string

	// Query is the question as asked.
	Query string

	// Answer is the final answer text.
	Answer string

	// ResultCount is the number of cited documents.
	ResultCount int

	// Results is the final result set.
	Results []SearchResultEntry

	// Elapsed is the total execution time.
	Elapsed time.Duration

	CreatedAt time.Time
}
