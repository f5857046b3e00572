package ir

import (
	"fmt"
	"math"
	"slices"
)

// Pattern is one triple-pattern clause of a graph query. The optimizer only
// uses the two ids as lookup keys into a cost model.
type Pattern struct {
	Predicate uint64 `json:"predicate" yaml:"predicate"`
	Object    uint64 `json:"object" yaml:"object"`
}

// QuerySpec is a named query together with the iteration budget the
// optimizer should spend on it.
type QuerySpec struct {
	Name       string    `json:"name"`
	Iterations int       `json:"iterations"`
	Patterns   []Pattern `json:"patterns"`
}

// StatsSpec describes dataset statistics in sparse form. A cost model is
// built from it with dense tables sized MaxPredicate+1 and MaxObject+1.
//
// MaxPredicate and MaxObject are optional. When nil, the largest id present
// in the corresponding map is used (and no table at all when the map is
// empty).
type StatsSpec struct {
	TotalTriples float64            `json:"total_triples" yaml:"total_triples"`
	MaxPredicate *uint64            `json:"max_predicate,omitempty" yaml:"max_predicate,omitempty"`
	MaxObject    *uint64            `json:"max_object,omitempty" yaml:"max_object,omitempty"`
	Predicates   map[uint64]float64 `json:"predicates,omitempty" yaml:"predicates,omitempty"`
	Objects      map[uint64]uint64  `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// Validate checks that the statistics are internally consistent.
func (s StatsSpec) Validate() error {
	if math.IsNaN(s.TotalTriples) || math.IsInf(s.TotalTriples, 0) || s.TotalTriples < 0 {
		return fmt.Errorf("total_triples must be a finite non-negative number, got %v", s.TotalTriples)
	}

	for _, id := range sortedKeys(s.Predicates) {
		sel := s.Predicates[id]
		if !(sel > 0 && sel <= 1) {
			return fmt.Errorf("predicates[%d]: selectivity must be in (0,1], got %v", id, sel)
		}
		if s.MaxPredicate != nil && id > *s.MaxPredicate {
			return fmt.Errorf("predicates[%d]: id exceeds max_predicate %d", id, *s.MaxPredicate)
		}
	}

	if s.MaxObject != nil {
		for _, id := range sortedKeys(s.Objects) {
			if id > *s.MaxObject {
				return fmt.Errorf("objects[%d]: id exceeds max_object %d", id, *s.MaxObject)
			}
		}
	}

	return nil
}

// PredicateIDs returns the predicate ids with statistics in ascending order.
func (s StatsSpec) PredicateIDs() []uint64 {
	return sortedKeys(s.Predicates)
}

// ObjectIDs returns the object ids with statistics in ascending order.
func (s StatsSpec) ObjectIDs() []uint64 {
	return sortedKeys(s.Objects)
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
