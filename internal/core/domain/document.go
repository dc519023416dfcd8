package domain

import "time"

// Document is the engine's read-side view of one platform document: its
// title plus the latest extraction snapshot. Document content and CRUD are
// owned by the upstream document store; the engine only keeps what the
// index, ranker and orchestrator need.
type Document struct {
	// ID is the platform document identifier.
	ID string

	// WorkspaceID scopes the document.
	WorkspaceID string

	// Title is the display title.
	Title string

	// Type is the document type tag.
	Type DocumentType

	// Extraction is the latest AI-extracted structured data.
	Extraction Extraction

	UpdatedAt time.Time
}
