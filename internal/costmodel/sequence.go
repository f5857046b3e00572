package costmodel

import "github.com/roach88/joinopt/internal/ir"

// SequenceCost evaluates a full ordering of patterns left to right. Each
// pattern contributes its estimated cost; every pattern after the first
// also contributes join(previous, current), where the previous pattern's
// estimated cost stands in for the running cardinality. A nil join uses
// EstimateJoinCost.
func SequenceCost(patterns []ir.Pattern, order []int, m *Model, join JoinCostFunc) float64 {
	if join == nil {
		join = EstimateJoinCost
	}

	total := 0.0
	prev := 0.0
	for i, idx := range order {
		cost := EstimatePatternCost(patterns[idx], m)
		total += cost
		if i > 0 {
			total += join(prev, cost)
		}
		prev = cost
	}
	return total
}
