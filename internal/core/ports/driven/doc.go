// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EntityStore: canonical entity and mention persistence
//   - DocumentCatalog: read-side document titles and extraction snapshots
//   - TextIndex: lexical search over document and entity text
//   - QueryLogStore: append-only search audit log
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - Composer: AI composition service. Without it, related-document
//     re-ranking and answer synthesis fall back to deterministic results.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
