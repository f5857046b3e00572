package costmodel

import (
	"fmt"

	"github.com/google/btree"

	"github.com/roach88/joinopt/internal/ir"
)

const builderDegree = 16

type predicateStat struct {
	id          uint64
	selectivity float64
}

type objectStat struct {
	id          uint64
	cardinality uint64
}

// Builder collects sparse statistics in any order and produces a Model
// with dense tables. Entries are kept in ordered B-trees so the largest id
// is known without a scan and tables are filled in ascending id order.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	totalTriples float64
	maxPredicate *uint64
	maxObject    *uint64
	predicates   *btree.BTreeG[predicateStat]
	objects      *btree.BTreeG[objectStat]
}

// NewBuilder starts a model for a dataset of totalTriples triples.
func NewBuilder(totalTriples float64) *Builder {
	return &Builder{
		totalTriples: totalTriples,
		predicates: btree.NewG(builderDegree, func(a, b predicateStat) bool {
			return a.id < b.id
		}),
		objects: btree.NewG(builderDegree, func(a, b objectStat) bool {
			return a.id < b.id
		}),
	}
}

// MaxPredicate declares the predicate table bound explicitly. Without it
// the bound is the largest predicate id added.
func (b *Builder) MaxPredicate(id uint64) *Builder {
	b.maxPredicate = &id
	return b
}

// MaxObject declares the object table bound explicitly.
func (b *Builder) MaxObject(id uint64) *Builder {
	b.maxObject = &id
	return b
}

// Predicate records a predicate selectivity. A later call for the same id
// replaces the earlier value.
func (b *Builder) Predicate(id uint64, selectivity float64) *Builder {
	b.predicates.ReplaceOrInsert(predicateStat{id: id, selectivity: selectivity})
	return b
}

// Object records an object cardinality.
func (b *Builder) Object(id uint64, cardinality uint64) *Builder {
	b.objects.ReplaceOrInsert(objectStat{id: id, cardinality: cardinality})
	return b
}

// Len returns the number of predicate and object entries collected.
func (b *Builder) Len() (predicates, objects int) {
	return b.predicates.Len(), b.objects.Len()
}

// Build allocates the model. Entries beyond an explicitly declared bound
// are an error; a dimension with neither entries nor a declared bound gets
// no table.
func (b *Builder) Build() (*Model, error) {
	m := &Model{totalTriples: b.totalTriples}

	predBound, hasPreds, err := bound("predicate", b.maxPredicate, b.predicates.Len(), func() uint64 {
		last, _ := b.predicates.Max()
		return last.id
	})
	if err != nil {
		return nil, err
	}
	if hasPreds {
		table, err := allocTable[float64]("predicate", predBound)
		if err != nil {
			return nil, err
		}
		for i := range table {
			table[i] = 1.0
		}
		b.predicates.Ascend(func(s predicateStat) bool {
			table[s.id] = s.selectivity
			return true
		})
		m.predicateSelectivity = table
	}

	objBound, hasObjs, err := bound("object", b.maxObject, b.objects.Len(), func() uint64 {
		last, _ := b.objects.Max()
		return last.id
	})
	if err != nil {
		return nil, err
	}
	if hasObjs {
		table, err := allocTable[uint64]("object", objBound)
		if err != nil {
			return nil, err
		}
		b.objects.Ascend(func(s objectStat) bool {
			table[s.id] = s.cardinality
			return true
		})
		m.objectCardinality = table
	}

	return m, nil
}

func bound(kind string, declared *uint64, entries int, largest func() uint64) (uint64, bool, error) {
	switch {
	case declared != nil:
		if entries > 0 && largest() > *declared {
			return 0, false, fmt.Errorf("%s id %d exceeds declared max %d", kind, largest(), *declared)
		}
		return *declared, true, nil
	case entries > 0:
		return largest(), true, nil
	default:
		return 0, false, nil
	}
}

// FromStats validates a statistics spec and builds a Model from it.
func FromStats(s ir.StatsSpec) (*Model, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statistics: %w", err)
	}

	b := NewBuilder(s.TotalTriples)
	if s.MaxPredicate != nil {
		b.MaxPredicate(*s.MaxPredicate)
	}
	if s.MaxObject != nil {
		b.MaxObject(*s.MaxObject)
	}
	for id, sel := range s.Predicates {
		b.Predicate(id, sel)
	}
	for id, card := range s.Objects {
		b.Object(id, card)
	}
	return b.Build()
}
