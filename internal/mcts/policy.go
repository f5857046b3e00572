package mcts

import (
	"math"

	"github.com/roach88/joinopt/internal/searchtree"
)

// MeanReward is total reward over visits, with Epsilon guarding unvisited
// nodes.
func MeanReward(reward float64, visits int) float64 {
	return reward / (float64(visits) + Epsilon)
}

// UCB1 scores a child for selection:
//
//	mean(child) + C * sqrt(ln(parentVisits+1) / (childVisits+ε))
func UCB1(parentVisits, childVisits int, childReward float64) float64 {
	exploration := math.Sqrt(math.Log(float64(parentVisits)+1) / (float64(childVisits) + Epsilon))
	return MeanReward(childReward, childVisits) + ExplorationConstant*exploration
}

// selectChild returns the child of id with the highest UCB1 score. Ties go
// to the earliest child. Returns NoNode if id has no children.
func (s *Search) selectChild(id searchtree.NodeID) searchtree.NodeID {
	parent := s.tree.Node(id)
	return argmax(s.tree, parent.Children, func(c *searchtree.Node) float64 {
		return UCB1(parent.Visits, c.Visits, c.Reward)
	})
}

// bestChild returns the child of id with the highest mean reward.
func (s *Search) bestChild(id searchtree.NodeID) searchtree.NodeID {
	return argmax(s.tree, s.tree.Node(id).Children, func(c *searchtree.Node) float64 {
		return MeanReward(c.Reward, c.Visits)
	})
}

// argmax scans children in order and keeps the first strictly greater
// score.
func argmax(tree *searchtree.Tree, children []searchtree.NodeID, score func(*searchtree.Node) float64) searchtree.NodeID {
	best := searchtree.NoNode
	bestScore := 0.0
	for _, cid := range children {
		sc := score(tree.Node(cid))
		if best == searchtree.NoNode || sc > bestScore {
			best = cid
			bestScore = sc
		}
	}
	return best
}
