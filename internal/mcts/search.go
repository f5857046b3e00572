package mcts

import (
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/plan"
	"github.com/roach88/joinopt/internal/searchtree"
)

// Epsilon keeps mean-reward and exploration terms finite for children
// that have never been visited.
const Epsilon = 1e-6

// ExplorationConstant is the canonical UCB1 exploration weight, sqrt(2).
var ExplorationConstant = math.Sqrt2

// Options configures a search. The zero value is ready to use.
type Options struct {
	// MaxNodes bounds the search tree. Zero selects
	// searchtree.DefaultMaxNodes.
	MaxNodes int

	// JoinCost replaces the nested-loop join heuristic used by rollouts.
	JoinCost costmodel.JoinCostFunc

	// Logger receives start/finish records at debug level. Nil discards.
	Logger *slog.Logger

	// Observer, if set, is called after every iteration.
	Observer Observer
}

// IterationStats describes one completed iteration.
type IterationStats struct {
	// Iteration is 1-based.
	Iteration int

	// Order is the prefix of the node that was simulated.
	Order []int

	// Expanded reports whether this iteration expanded a node.
	Expanded bool

	// Reward is the simulation result (negated cost).
	Reward float64

	// Nodes is the tree size after the iteration.
	Nodes int
}

// Observer receives per-iteration statistics.
type Observer func(IterationStats)

// Search holds one in-progress optimization: the tree, its root, and the
// read-only inputs. Optimizer.Optimize drives a Search to completion;
// tests and tools can step it manually.
//
// A Search is not safe for concurrent use.
type Search struct {
	patterns  []ir.Pattern
	model     *costmodel.Model
	join      costmodel.JoinCostFunc
	tree      *searchtree.Tree
	root      searchtree.NodeID
	iteration int
	observer  Observer
	logger    *slog.Logger
}

// NewSearch builds the root node: nothing placed, every pattern remaining.
func NewSearch(patterns []ir.Pattern, model *costmodel.Model, opts Options) (*Search, error) {
	if model == nil {
		return nil, newInvalidInputError("cost model is required")
	}

	join := opts.JoinCost
	if join == nil {
		join = costmodel.EstimateJoinCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tree := searchtree.New(opts.MaxNodes)
	all := make([]int, len(patterns))
	for i := range all {
		all[i] = i
	}
	root, err := tree.NewNode(nil, all)
	if err != nil {
		return nil, newAllocationError(0, err)
	}

	return &Search{
		patterns: patterns,
		model:    model,
		join:     join,
		tree:     tree,
		root:     root,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// Tree returns the search tree.
func (s *Search) Tree() *searchtree.Tree {
	return s.tree
}

// Root returns the root node id.
func (s *Search) Root() searchtree.NodeID {
	return s.root
}

// Iterations returns the number of completed iterations.
func (s *Search) Iterations() int {
	return s.iteration
}

// Step runs one select/expand/simulate/backpropagate iteration and
// returns the simulated reward. On an allocation failure the tree is left
// as it was before the iteration.
func (s *Search) Step() (float64, error) {
	iteration := s.iteration + 1

	cur := s.selectLeaf()

	expanded := false
	if s.tree.Node(cur).Expandable() {
		first, err := s.expand(cur)
		if err != nil {
			return 0, newAllocationError(iteration, err)
		}
		cur = first
		expanded = true
	}

	reward := s.simulate(cur)
	s.backpropagate(cur, reward)
	s.iteration = iteration

	if s.observer != nil {
		s.observer(IterationStats{
			Iteration: iteration,
			Order:     slices.Clone(s.tree.Node(cur).Order),
			Expanded:  expanded,
			Reward:    reward,
			Nodes:     s.tree.Len(),
		})
	}
	return reward, nil
}

// Extract walks from the root to a childless node, at each step taking
// the child with the highest mean reward. The walked prefix becomes the
// head of the plan; the final node's remaining patterns complete it in
// rollout order, so the plan is always a permutation.
//
// The cost is the final node's mean cost. A final node that was never
// visited is costed directly.
func (s *Search) Extract() plan.Plan {
	if len(s.patterns) == 0 {
		return plan.Empty
	}

	cur := s.root
	node := s.tree.Node(cur)
	for len(node.Children) > 0 {
		cur = s.bestChild(cur)
		node = s.tree.Node(cur)
	}

	order := rollout(node)
	var cost float64
	if node.Visits > 0 {
		cost = -(node.Reward / float64(node.Visits))
	} else {
		cost = costmodel.SequenceCost(s.patterns, order, s.model, s.join)
	}
	return plan.New(order, cost, len(node.Order))
}

// Close releases the search tree. The Search must not be used afterwards.
func (s *Search) Close() {
	if s.tree == nil {
		return
	}
	s.tree.Release(s.root)
	s.tree = nil
	s.root = searchtree.NoNode
}

// selectLeaf descends from the root by UCB1 while the current node has
// both children and patterns left to place.
func (s *Search) selectLeaf() searchtree.NodeID {
	cur := s.root
	for {
		node := s.tree.Node(cur)
		if len(node.Children) == 0 || len(node.Remaining) == 0 {
			return cur
		}
		cur = s.selectChild(cur)
	}
}

// simulate costs the node's order followed by its remaining patterns in
// stored order and returns the negated cost.
func (s *Search) simulate(id searchtree.NodeID) float64 {
	return -costmodel.SequenceCost(s.patterns, rollout(s.tree.Node(id)), s.model, s.join)
}

// backpropagate adds one visit and reward to id and each of its ancestors.
func (s *Search) backpropagate(id searchtree.NodeID, reward float64) {
	for id != searchtree.NoNode {
		node := s.tree.Node(id)
		node.Visits++
		node.Reward += reward
		id = node.Parent
	}
}

// rollout is the full ordering a node stands for: its prefix followed by
// the remaining patterns in stored order.
func rollout(node *searchtree.Node) []int {
	seq := make([]int, 0, len(node.Order)+len(node.Remaining))
	seq = append(seq, node.Order...)
	return append(seq, node.Remaining...)
}
