// Package plan defines the output of a join-order optimization: an order
// over pattern indices plus its estimated cost.
package plan

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/joinopt/internal/ir"
)

// Plan is an evaluation order over the patterns of a query and the cost
// the optimizer estimated for it. Plans are values: constructors copy
// their inputs and no method mutates the receiver.
type Plan struct {
	// Order lists pattern indices in evaluation order.
	Order []int `json:"order"`

	// Cost is the estimated total evaluation cost of Order.
	Cost float64 `json:"cost"`

	// Extracted is how many leading entries of Order were chosen by walking
	// the search tree. The rest were appended from the last visited node's
	// remaining patterns because the search ran out of iterations before
	// expanding that far.
	Extracted int `json:"extracted"`
}

// Empty is the plan for a query without patterns.
var Empty = Plan{Order: []int{}}

// New builds a plan, copying order.
func New(order []int, cost float64, extracted int) Plan {
	o := slices.Clone(order)
	if o == nil {
		o = []int{}
	}
	return Plan{Order: o, Cost: cost, Extracted: extracted}
}

// Len returns the number of ordered patterns.
func (p Plan) Len() int {
	return len(p.Order)
}

// Partial reports whether part of Order was completed outside the tree.
func (p Plan) Partial() bool {
	return p.Extracted < len(p.Order)
}

// IsPermutation reports whether Order is a permutation of 0..n-1.
func (p Plan) IsPermutation(n int) bool {
	return p.Validate(n) == nil
}

// Validate checks that Order is a permutation of 0..n-1 and that Cost is
// a finite number.
func (p Plan) Validate(n int) error {
	if len(p.Order) != n {
		return fmt.Errorf("plan orders %d patterns, query has %d", len(p.Order), n)
	}
	seen := make([]bool, n)
	for pos, idx := range p.Order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("order[%d] = %d out of range", pos, idx)
		}
		if seen[idx] {
			return fmt.Errorf("order[%d] = %d repeats an earlier index", pos, idx)
		}
		seen[idx] = true
	}
	if math.IsNaN(p.Cost) || math.IsInf(p.Cost, 0) {
		return fmt.Errorf("cost is not finite: %v", p.Cost)
	}
	if p.Extracted < 0 || p.Extracted > len(p.Order) {
		return fmt.Errorf("extracted %d outside 0..%d", p.Extracted, len(p.Order))
	}
	return nil
}

// Apply returns patterns rearranged into plan order, the form an
// execution engine consumes.
func (p Plan) Apply(patterns []ir.Pattern) ([]ir.Pattern, error) {
	if err := p.Validate(len(patterns)); err != nil {
		return nil, err
	}
	out := make([]ir.Pattern, len(p.Order))
	for i, idx := range p.Order {
		out[i] = patterns[idx]
	}
	return out, nil
}

// ID computes the content-addressed identity of the plan for the given
// query and statistics fingerprints.
func (p Plan) ID(queryFingerprint, statsFingerprint string, iterations int) (string, error) {
	return ir.PlanID(queryFingerprint, statsFingerprint, iterations, p.Order)
}

// Equal reports whether two plans have the same order, cost and extraction
// depth.
func (p Plan) Equal(other Plan) bool {
	return slices.Equal(p.Order, other.Order) && p.Cost == other.Cost && p.Extracted == other.Extracted
}

// String renders the plan as "[2 0 1] cost=123.4".
func (p Plan) String() string {
	parts := make([]string, len(p.Order))
	for i, idx := range p.Order {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("[%s] cost=%s", strings.Join(parts, " "), FormatCost(p.Cost))
}

// FormatCost renders a cost with the shortest exact decimal form.
func FormatCost(c float64) string {
	return fmt.Sprintf("%v", c)
}
