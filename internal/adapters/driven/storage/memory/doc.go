// Package memory provides in-memory implementations of the driven store
// ports. They are used as test doubles and for ephemeral runs; durability
// comes from the sqlite and postgres adapters.
package memory
