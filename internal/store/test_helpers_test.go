package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/joinopt/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// createTestStats returns a small statistics snapshot with both tables.
func createTestStats() ir.StatsSpec {
	return ir.StatsSpec{
		TotalTriples: 1000,
		MaxPredicate: uint64Ptr(4),
		Predicates: map[uint64]float64{
			0: 0.5,
			1: 0.01,
			3: 0.25,
		},
		Objects: map[uint64]uint64{
			0: 9,
			2: 1,
		},
	}
}

// createTestRecord creates a plan record with minimal required fields.
func createTestRecord(query string, order []int, cost float64) PlanRecord {
	return PlanRecord{
		PlanID:           "plan-" + query,
		Query:            query,
		QueryFingerprint: "qfp-" + query,
		StatsFingerprint: "sfp",
		Iterations:       100,
		JoinCost:         "nested_loop",
		Order:            order,
		Cost:             cost,
		Extracted:        len(order),
		OptimizerVersion: ir.OptimizerVersion,
		IRVersion:        ir.IRVersion,
	}
}
