// Package mcts implements the Monte-Carlo-Tree-Search join-order
// optimizer.
//
// Given the patterns of a query, a cost model and an iteration budget, the
// optimizer grows a search tree over pattern orderings and returns the
// ordering with the best observed reward.
//
// ARCHITECTURE:
//
// Each iteration runs four phases against a searchtree.Tree:
//
//	select      descend from the root by UCB1 while the node has children
//	            and patterns left to place
//	expand      a visited, childless, non-terminal node gets one child per
//	            remaining pattern; the iteration continues in the first one
//	simulate    cost the node's order followed by its remaining patterns
//	            in their current order; reward is the negated cost
//	backprop    add one visit and the reward to the node and every ancestor
//
// After the budget is spent the plan is extracted greedily by mean reward
// and the tree is released.
//
// DETERMINISM:
//
// No randomness is involved. Rollouts append remaining patterns in stored
// order, ties in selection and extraction favor the earliest-created
// child, and identical inputs always yield identical plans.
//
// EXPANSION:
//
// Expansion is full-width and the iteration always continues in the first
// new child rather than choosing among new children by UCB1. Both are part
// of the optimizer's observable behavior and covered by tests.
package mcts
