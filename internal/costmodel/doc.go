// Package costmodel estimates the cost of evaluating triple patterns and of
// joining their results.
//
// A Model holds the dataset size plus two dense lookup tables: predicate
// selectivities and object cardinalities, each sized max_id+1. Lookups for
// ids beyond a table's declared maximum mean "no information" and leave the
// corresponding factor at 1.0. The model never fails.
//
// Models are read-only once built and may be shared across concurrent
// optimizations. How a Model is populated is pluggable through Provider:
// DefaultProvider supplies fixed placeholder statistics, and the store
// package provides a SQLite-backed implementation.
package costmodel
