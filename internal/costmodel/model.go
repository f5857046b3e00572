package costmodel

import (
	"errors"
	"fmt"

	"github.com/roach88/joinopt/internal/ir"
)

// JoinFactor is the fixed tuning constant of the nested-loop join heuristic.
const JoinFactor = 0.001

// MaxTableSize bounds the number of entries in either lookup table.
const MaxTableSize = 1 << 24

// ErrTableTooLarge is returned when a declared maximum id would need a
// lookup table larger than MaxTableSize.
var ErrTableTooLarge = errors.New("costmodel: lookup table too large")

// Model is the statistics aggregate the optimizer costs patterns against.
//
// A nil table means no statistics at all for that dimension: every id is
// treated as out of range.
type Model struct {
	totalTriples         float64
	predicateSelectivity []float64
	objectCardinality    []uint64
}

// NewModel allocates a model whose predicate table covers ids
// 0..maxPredicate and whose object table covers 0..maxObject. Predicate
// entries start at selectivity 1.0 and object entries at cardinality 0, so
// an unset entry leaves a pattern's cost unchanged.
func NewModel(totalTriples float64, maxPredicate, maxObject uint64) (*Model, error) {
	preds, err := allocTable[float64]("predicate", maxPredicate)
	if err != nil {
		return nil, err
	}
	for i := range preds {
		preds[i] = 1.0
	}

	objs, err := allocTable[uint64]("object", maxObject)
	if err != nil {
		return nil, err
	}

	return &Model{
		totalTriples:         totalTriples,
		predicateSelectivity: preds,
		objectCardinality:    objs,
	}, nil
}

func allocTable[T any](kind string, maxID uint64) ([]T, error) {
	if maxID >= MaxTableSize {
		return nil, fmt.Errorf("%w: %s max id %d needs %d entries (limit %d)",
			ErrTableTooLarge, kind, maxID, maxID+1, MaxTableSize)
	}
	return make([]T, maxID+1), nil
}

// TotalTriples returns the estimated number of triples in the dataset.
func (m *Model) TotalTriples() float64 {
	return m.totalTriples
}

// MaxPredicate returns the declared maximum predicate id. The second
// result is false when the model carries no predicate table.
func (m *Model) MaxPredicate() (uint64, bool) {
	if len(m.predicateSelectivity) == 0 {
		return 0, false
	}
	return uint64(len(m.predicateSelectivity) - 1), true
}

// MaxObject returns the declared maximum object id. The second result is
// false when the model carries no object table.
func (m *Model) MaxObject() (uint64, bool) {
	if len(m.objectCardinality) == 0 {
		return 0, false
	}
	return uint64(len(m.objectCardinality) - 1), true
}

// SetPredicateSelectivity records the selectivity of a predicate. It
// reports false, leaving the model unchanged, when id is out of range.
// Models must not be mutated while an optimization is using them.
func (m *Model) SetPredicateSelectivity(id uint64, sel float64) bool {
	if id >= uint64(len(m.predicateSelectivity)) {
		return false
	}
	m.predicateSelectivity[id] = sel
	return true
}

// SetObjectCardinality records the cardinality of an object. It reports
// false, leaving the model unchanged, when id is out of range.
func (m *Model) SetObjectCardinality(id uint64, card uint64) bool {
	if id >= uint64(len(m.objectCardinality)) {
		return false
	}
	m.objectCardinality[id] = card
	return true
}

// PredicateSelectivity returns the selectivity for id and whether the id
// is within the table.
func (m *Model) PredicateSelectivity(id uint64) (float64, bool) {
	if id >= uint64(len(m.predicateSelectivity)) {
		return 1.0, false
	}
	return m.predicateSelectivity[id], true
}

// ObjectCardinality returns the cardinality for id and whether the id is
// within the table.
func (m *Model) ObjectCardinality(id uint64) (uint64, bool) {
	if id >= uint64(len(m.objectCardinality)) {
		return 0, false
	}
	return m.objectCardinality[id], true
}

// PatternCost is EstimatePatternCost bound to m.
func (m *Model) PatternCost(p ir.Pattern) float64 {
	return EstimatePatternCost(p, m)
}

// EstimatePatternCost estimates the number of triples a single pattern
// matches: total_triples scaled by the predicate's selectivity and by
// 1/(object_cardinality+1). Ids outside the tables leave their factor at
// 1.0.
func EstimatePatternCost(p ir.Pattern, m *Model) float64 {
	selectivity := 1.0

	if sel, ok := m.PredicateSelectivity(p.Predicate); ok {
		selectivity *= sel
	}
	if card, ok := m.ObjectCardinality(p.Object); ok {
		selectivity *= 1.0 / (float64(card) + 1.0)
	}

	return m.totalTriples * selectivity
}
