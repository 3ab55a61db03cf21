// Package store provides SQLite-backed storage for compiled include plans.
//
// Every compile writes one run and one plan per spec path:
//   - Runs: compile runs, identified by UUIDv7
//   - Plans: the lowered directives of one path, content-addressed by the
//     hash of their canonical JSON
//
// # Critical Patterns
//
// Idempotency
//   - PRIMARY KEY(run_id, spec, path_hash)
//   - Writing the same plan twice in a run is a no-op
//
// Logical Ordering
//   - Plans are ordered by seq INTEGER within a run, NEVER by timestamps
//   - Runs are ordered by their insertion seq
//
// Deterministic Query Results
//   - All queries include ORDER BY with a COLLATE BINARY tiebreaker
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Plan hashes are computed with ir.HashWithDomain over RFC 8785 canonical
// JSON.
package store
