package searchtree

import (
	"errors"
	"fmt"
	"slices"
)

// NodeID addresses a node within its Tree.
type NodeID int32

// NoNode is the zero reference: the parent of a root, or "no selection".
const NoNode NodeID = -1

// DefaultMaxNodes is the node budget used when New is given a
// non-positive limit.
const DefaultMaxNodes = 1 << 20

// ErrAllocation is returned by NewNode when the tree's node budget is
// exhausted.
var ErrAllocation = errors.New("searchtree: node budget exhausted")

// Node is one state of the search: a placed prefix plus the patterns not
// yet placed.
type Node struct {
	Order     []int
	Remaining []int
	Visits    int
	Reward    float64
	Children  []NodeID
	Parent    NodeID
}

// Depth is the number of placed patterns.
func (n *Node) Depth() int {
	return len(n.Order)
}

// Terminal reports whether every pattern has been placed.
func (n *Node) Terminal() bool {
	return len(n.Remaining) == 0
}

// Expandable reports whether the node may be expanded: it has no
// children, something left to place, and at least one visit.
func (n *Node) Expandable() bool {
	return len(n.Children) == 0 && len(n.Remaining) > 0 && n.Visits > 0
}

// Tree is an arena of nodes. The zero value is not usable; call New.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	nodes    []*Node
	free     []NodeID
	live     int
	maxNodes int
}

// New creates an empty tree that holds at most maxNodes live nodes.
func New(maxNodes int) *Tree {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Tree{maxNodes: maxNodes}
}

// NewNode allocates a detached node holding copies of prefix and
// remaining. The caller's slices are never aliased.
func (t *Tree) NewNode(prefix, remaining []int) (NodeID, error) {
	if t.live >= t.maxNodes {
		return NoNode, fmt.Errorf("%w: %d live nodes (limit %d)", ErrAllocation, t.live, t.maxNodes)
	}

	n := &Node{
		Order:     slices.Clone(prefix),
		Remaining: slices.Clone(remaining),
		Parent:    NoNode,
	}
	if n.Order == nil {
		n.Order = []int{}
	}
	if n.Remaining == nil {
		n.Remaining = []int{}
	}

	var id NodeID
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
	} else {
		id = NodeID(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	t.live++
	return id, nil
}

// Node returns the node for id, or nil if id is not live.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Attach appends child to parent's children and points child back at
// parent. The child must be detached.
func (t *Tree) Attach(parent, child NodeID) error {
	p := t.Node(parent)
	c := t.Node(child)
	if p == nil || c == nil {
		return fmt.Errorf("attach %d -> %d: node not live", parent, child)
	}
	if c.Parent != NoNode {
		return fmt.Errorf("attach %d -> %d: child already attached to %d", parent, child, c.Parent)
	}
	c.Parent = parent
	p.Children = append(p.Children, child)
	return nil
}

// Release frees id and its entire subtree and returns the number of nodes
// freed. If id is attached, it is removed from its parent's children. The
// walk uses an explicit stack and only descends through Children.
// Releasing a node that is not live is a no-op.
func (t *Tree) Release(id NodeID) int {
	n := t.Node(id)
	if n == nil {
		return 0
	}

	if p := t.Node(n.Parent); p != nil {
		if i := slices.Index(p.Children, id); i >= 0 {
			p.Children = slices.Delete(p.Children, i, i+1)
		}
	}

	freed := 0
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.nodes[cur]
		if node == nil {
			continue
		}
		stack = append(stack, node.Children...)

		t.nodes[cur] = nil
		t.free = append(t.free, cur)
		t.live--
		freed++
	}
	return freed
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	return t.live
}

// Cap returns the node budget.
func (t *Tree) Cap() int {
	return t.maxNodes
}
