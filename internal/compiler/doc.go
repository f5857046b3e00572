// Package compiler turns CUE workload values into optimizer inputs.
//
// A workload file declares queries and, optionally, the dataset
// statistics they should be costed against:
//
//	query: lookup: {
//		iterations: 200
//		patterns: [
//			{predicate: 3, object: 17},
//			{predicate: 8, object: 2},
//		]
//	}
//
//	stats: {
//		total_triples: 1000000
//		max_predicate: 10
//		predicates: {"3": 0.02, "8": 0.4}
//		objects: {"17": 120}
//	}
//
// CompileQuery and CompileStats read one such value each. Validate checks
// the compiled result and reports every problem it finds.
package compiler
