// Package domain defines the core business entities for the knowledge engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Entity: a canonical, workspace-scoped real-world entity merged across documents
//   - Mention: one occurrence linking an entity to a document field
//   - Extraction: the closed union of per-document-type structured extraction payloads
//   - RelatedDocument / SearchAnswer: ranked results produced by the read-side services
//   - QueryLogEntry: the append-only audit record of one search execution
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse. The only non-stdlib import is the Unicode
// normalisation table used for canonical entity names.
package domain
