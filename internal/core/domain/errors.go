package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEntityLimitExceeded indicates the per-workspace canonical entity
	// ceiling was reached. Harvesting skips new-entity creation for the rest
	// of the batch; already-existing entities keep processing.
	ErrEntityLimitExceeded = errors.New("workspace entity limit exceeded")

	// ErrComposerUnavailable indicates the AI composition service is not
	// configured. Features requiring it (re-ranking, synthesis) degrade to
	// their deterministic fallbacks.
	ErrComposerUnavailable = errors.New("AI composition service unavailable")

	// ErrIndexUnavailable indicates the text index backend is not configured.
	// Lexical search is disabled.
	ErrIndexUnavailable = errors.New("text index unavailable")

	// ErrUnsupportedDocumentType indicates an extraction payload carries a
	// document type with no registered harvest mapping.
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
)
