// Package harness runs optimizer conformance scenarios.
//
// A scenario pins down one optimization: the patterns, the statistics they
// are costed against, the iteration budget and the join heuristic. The
// harness runs the optimizer on it, records every iteration, and checks
// the resulting plan against the scenario's assertions.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: two_uniform
//	description: "Two equal-cost patterns"
//	iterations: 8
//	join_cost: nested_loop
//	patterns:
//	  - {predicate: 0, object: 0}
//	  - {predicate: 1, object: 1}
//	stats:
//	  total_triples: 200
//	  predicates: {0: 0.5, 1: 0.5}
//	assertions:
//	  - type: permutation
//	  - type: cost
//	    cost: 210
//
// Without a stats block the scenario is costed with the placeholder
// statistics of costmodel.DefaultProvider.
//
// # Assertion Types
//
//   - permutation: the plan orders every pattern exactly once
//   - order: the plan order equals the given order
//   - cost: the plan cost is within tolerance of the given cost
//   - extracted: the tree walk chose exactly count leading patterns
//   - no_worse_than_input: the plan costs no more than the input order
//   - deterministic: a second run yields an identical plan
//   - error: the optimizer failed with the given error code
//
// # Golden Files
//
// Snapshot renders the plan and the per-iteration trace as canonical JSON.
// RunWithGolden compares it against testdata/scenarios/golden/<name>.golden:
//
//	go test ./internal/harness -update
//
// regenerates the files.
package harness
