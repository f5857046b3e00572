package searchtree

import "fmt"

// Check verifies the structural invariants of the subtree rooted at root
// for a search over n patterns:
//   - Order and Remaining are disjoint and together cover 0..n-1 exactly
//   - every child extends its parent's Order by one element of the parent's
//     Remaining and points back at the parent
//
// It returns the first violation found.
func (t *Tree) Check(root NodeID, n int) error {
	if t.Node(root) == nil {
		return fmt.Errorf("node %d: not live", root)
	}

	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.Node(id)

		if err := checkCover(node, n); err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}

		for _, cid := range node.Children {
			child := t.Node(cid)
			if child == nil {
				return fmt.Errorf("node %d: child %d not live", id, cid)
			}
			if child.Parent != id {
				return fmt.Errorf("node %d: child %d has parent %d", id, cid, child.Parent)
			}
			if err := checkExtends(node, child); err != nil {
				return fmt.Errorf("node %d -> %d: %w", id, cid, err)
			}
			stack = append(stack, cid)
		}
	}
	return nil
}

func checkCover(node *Node, n int) error {
	if len(node.Order)+len(node.Remaining) != n {
		return fmt.Errorf("order(%d) + remaining(%d) != %d", len(node.Order), len(node.Remaining), n)
	}
	seen := make([]bool, n)
	for _, list := range [][]int{node.Order, node.Remaining} {
		for _, idx := range list {
			if idx < 0 || idx >= n {
				return fmt.Errorf("index %d out of range", idx)
			}
			if seen[idx] {
				return fmt.Errorf("index %d appears twice", idx)
			}
			seen[idx] = true
		}
	}
	return nil
}

func checkExtends(parent, child *Node) error {
	if len(child.Order) != len(parent.Order)+1 {
		return fmt.Errorf("child depth %d, parent depth %d", len(child.Order), len(parent.Order))
	}
	for i, idx := range parent.Order {
		if child.Order[i] != idx {
			return fmt.Errorf("child order diverges at position %d", i)
		}
	}
	last := child.Order[len(child.Order)-1]
	for _, idx := range parent.Remaining {
		if idx == last {
			return nil
		}
	}
	return fmt.Errorf("placed index %d was not remaining in parent", last)
}
