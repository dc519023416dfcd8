// Package services implements the driving ports: entity harvesting,
// related-document ranking, semantic search and index administration.
//
// Services depend only on domain types and driven ports. Optional
// collaborators (the AI composer) may be nil; every service degrades to a
// deterministic result rather than failing, and reports degradations as
// notes on the result.
package services
