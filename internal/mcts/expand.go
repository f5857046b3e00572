package mcts

import (
	"slices"

	"github.com/roach88/joinopt/internal/searchtree"
)

// expand gives id one child per remaining pattern, in remaining order, and
// returns the first child. Expansion is all or nothing: if any child
// cannot be allocated, the children created so far are released and id is
// left childless.
func (s *Search) expand(id searchtree.NodeID) (searchtree.NodeID, error) {
	parent := s.tree.Node(id)
	order := parent.Order
	remaining := parent.Remaining

	children := make([]searchtree.NodeID, 0, len(remaining))
	for i, cand := range remaining {
		prefix := append(slices.Clip(order), cand)
		rest := slices.Delete(slices.Clone(remaining), i, i+1)

		cid, err := s.tree.NewNode(prefix, rest)
		if err != nil {
			for _, c := range children {
				s.tree.Release(c)
			}
			return searchtree.NoNode, err
		}
		children = append(children, cid)
	}

	for _, cid := range children {
		if err := s.tree.Attach(id, cid); err != nil {
			return searchtree.NoNode, err
		}
	}
	return children[0], nil
}
