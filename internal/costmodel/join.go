package costmodel

import (
	"fmt"
	"slices"
)

// JoinCostFunc estimates the cost of joining an intermediate result of
// cardinality a with a pattern result of cardinality b.
type JoinCostFunc func(a, b float64) float64

// EstimateJoinCost is the nested-loop heuristic a × b × JoinFactor.
func EstimateJoinCost(a, b float64) float64 {
	return a * b * JoinFactor
}

// ProbeJoinCost charges one pass over the outer side plus one probe per
// outer row into the inner side: a × (1 + b × JoinFactor). Unlike
// EstimateJoinCost it is asymmetric, so it rewards putting the smaller
// input first.
func ProbeJoinCost(a, b float64) float64 {
	return a * (1 + b*JoinFactor)
}

// Join cost names accepted by JoinCostByName.
const (
	JoinNestedLoop = "nested_loop"
	JoinProbe      = "probe"
)

var joinCosts = map[string]JoinCostFunc{
	JoinNestedLoop: EstimateJoinCost,
	JoinProbe:      ProbeJoinCost,
}

// JoinCostByName resolves a join cost function by name. The empty name
// selects the nested-loop default.
func JoinCostByName(name string) (JoinCostFunc, error) {
	if name == "" {
		return EstimateJoinCost, nil
	}
	fn, ok := joinCosts[name]
	if !ok {
		return nil, fmt.Errorf("unknown join cost %q: must be one of %v", name, JoinCostNames())
	}
	return fn, nil
}

// JoinCostNames lists the registered join cost names in sorted order.
func JoinCostNames() []string {
	names := make([]string, 0, len(joinCosts))
	for name := range joinCosts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
