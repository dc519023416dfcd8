// Package postgres provides the client-server TextIndex backend on
// PostgreSQL full-text search.
//
// Document and entity records carry a generated tsvector column computed
// from their text fields, indexed with GIN. Queries go through
// plainto_tsquery, which parses user input as plain phrases and so needs
// no manual operator escaping, unlike the embedded backend's MATCH
// grammar. Headlines mirror the embedded backend's <mark> convention so
// downstream consumers cannot tell the backends apart.
package postgres
