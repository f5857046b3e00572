// Package store provides SQLite-backed storage for join-order statistics
// and plan history.
//
// The store holds:
//   - Statistics: one snapshot of dataset statistics (total triples,
//     per-predicate selectivity, per-object cardinality) from which cost
//     models are built. Store implements costmodel.Provider.
//   - Plans: an append-only history of optimizer runs, each keyed by a
//     UUIDv7 run id and carrying the content-addressed plan id.
//
// # Ordering
//
//   - Plan history is ordered by seq (insertion order), NEVER by wall time.
//   - Statistics rows are read in ascending id order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints and plan ids are computed by internal/ir using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package store
