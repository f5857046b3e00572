package mcts

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/searchtree"
)

// uniformModel gives every predicate 0..n-1 the same selectivity and
// carries no object table.
func uniformModel(t *testing.T, total, selectivity float64, n int) *costmodel.Model {
	t.Helper()
	b := costmodel.NewBuilder(total)
	for i := 0; i < n; i++ {
		b.Predicate(uint64(i), selectivity)
	}
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func distinctPatterns(n int) []ir.Pattern {
	patterns := make([]ir.Pattern, n)
	for i := range patterns {
		patterns[i] = ir.Pattern{Predicate: uint64(i)}
	}
	return patterns
}

func newTestSearch(t *testing.T, patterns []ir.Pattern, m *costmodel.Model, opts Options) *Search {
	t.Helper()
	s, err := NewSearch(patterns, m, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewSearchRoot(t *testing.T) {
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{})

	root := s.Tree().Node(s.Root())
	require.NotNil(t, root)
	assert.Empty(t, root.Order)
	assert.Equal(t, []int{0, 1, 2}, root.Remaining)
	assert.Zero(t, root.Visits)
	assert.Empty(t, root.Children)
	assert.Equal(t, searchtree.NoNode, root.Parent)
}

func TestNewSearchRequiresModel(t *testing.T) {
	_, err := NewSearch(distinctPatterns(1), nil, Options{})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestFirstStepBackpropagatesToRoot(t *testing.T) {
	patterns := distinctPatterns(3)
	m := uniformModel(t, 1000, 0.1, 3)
	s := newTestSearch(t, patterns, m, Options{})

	reward, err := s.Step()
	require.NoError(t, err)

	want := -costmodel.SequenceCost(patterns, []int{0, 1, 2}, m, nil)
	assert.Equal(t, want, reward)

	root := s.Tree().Node(s.Root())
	assert.Equal(t, 1, root.Visits)
	assert.Equal(t, reward, root.Reward)
	assert.Empty(t, root.Children, "an unvisited root is not expanded")
	assert.Equal(t, 1, s.Iterations())
}

func TestSecondStepExpandsFullWidthAndDescendsIntoFirstChild(t *testing.T) {
	var stats []IterationStats
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{
		Observer: func(st IterationStats) { stats = append(stats, st) },
	})

	for i := 0; i < 2; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	root := s.Tree().Node(s.Root())
	require.Len(t, root.Children, 3, "one child per remaining pattern")

	wantOrders := [][]int{{0}, {1}, {2}}
	wantRemaining := [][]int{{1, 2}, {0, 2}, {0, 1}}
	for i, cid := range root.Children {
		child := s.Tree().Node(cid)
		assert.Equal(t, wantOrders[i], child.Order)
		assert.Equal(t, wantRemaining[i], child.Remaining)
		assert.Equal(t, s.Root(), child.Parent)
	}

	first := s.Tree().Node(root.Children[0])
	assert.Equal(t, 1, first.Visits, "the first child is simulated without consulting UCB1")
	assert.Zero(t, s.Tree().Node(root.Children[1]).Visits)
	assert.Zero(t, s.Tree().Node(root.Children[2]).Visits)
	assert.Equal(t, 2, root.Visits)

	require.Len(t, stats, 2)
	assert.False(t, stats[0].Expanded)
	assert.Equal(t, []int{}, stats[0].Order)
	assert.True(t, stats[1].Expanded)
	assert.Equal(t, []int{0}, stats[1].Order)
	assert.Equal(t, 4, stats[1].Nodes)
}

func TestIterationTrace(t *testing.T) {
	var stats []IterationStats
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{
		Observer: func(st IterationStats) { stats = append(stats, st) },
	})
	for i := 0; i < 8; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	want := []struct {
		order    []int
		expanded bool
		nodes    int
	}{
		{[]int{}, false, 1},
		{[]int{0}, true, 4},
		{[]int{1}, false, 4},
		{[]int{2}, false, 4},
		{[]int{0, 1}, true, 6},
		{[]int{1, 0}, true, 8},
		{[]int{2, 0}, true, 10},
		{[]int{0, 2}, false, 10},
	}
	require.Len(t, stats, len(want))
	for i, w := range want {
		assert.Equal(t, i+1, stats[i].Iteration)
		assert.Equal(t, w.order, stats[i].Order, "iteration %d", i+1)
		assert.Equal(t, w.expanded, stats[i].Expanded, "iteration %d", i+1)
		assert.Equal(t, w.nodes, stats[i].Nodes, "iteration %d", i+1)
		assert.InDelta(t, -320.0, stats[i].Reward, 1e-9)
	}
	require.NoError(t, s.Tree().Check(s.Root(), 3))
}

func TestTreeInvariantsHoldThroughoutSearch(t *testing.T) {
	patterns := distinctPatterns(5)
	s := newTestSearch(t, patterns, uniformModel(t, 10000, 0.2, 5), Options{})

	for i := 0; i < 200; i++ {
		_, err := s.Step()
		require.NoError(t, err)
		require.NoError(t, s.Tree().Check(s.Root(), len(patterns)), "after iteration %d", i+1)
	}
	assert.Equal(t, 200, s.Tree().Node(s.Root()).Visits)
}

func TestSelectChildTieFavorsEarliest(t *testing.T) {
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{})
	tree := s.Tree()
	root := tree.Node(s.Root())
	root.Visits = 3

	var ids []searchtree.NodeID
	for i := 0; i < 3; i++ {
		id, err := tree.NewNode([]int{i}, nil)
		require.NoError(t, err)
		require.NoError(t, tree.Attach(s.Root(), id))
		child := tree.Node(id)
		child.Visits = 1
		child.Reward = -10
		ids = append(ids, id)
	}

	assert.Equal(t, ids[0], s.selectChild(s.Root()))
	assert.Equal(t, ids[0], s.bestChild(s.Root()))

	// A strictly better later child wins.
	tree.Node(ids[2]).Reward = -5
	assert.Equal(t, ids[2], s.selectChild(s.Root()))
	assert.Equal(t, ids[2], s.bestChild(s.Root()))
}

func TestSelectChildPrefersUnvisited(t *testing.T) {
	s := newTestSearch(t, distinctPatterns(2), uniformModel(t, 1000, 0.1, 2), Options{})
	tree := s.Tree()
	tree.Node(s.Root()).Visits = 5

	visited, _ := tree.NewNode([]int{0}, []int{1})
	unvisited, _ := tree.NewNode([]int{1}, []int{0})
	require.NoError(t, tree.Attach(s.Root(), visited))
	require.NoError(t, tree.Attach(s.Root(), unvisited))
	tree.Node(visited).Visits = 4
	tree.Node(visited).Reward = 400 // even a large positive mean loses to exploration

	assert.Equal(t, unvisited, s.selectChild(s.Root()))
}

func TestSelectChildWithoutChildren(t *testing.T) {
	s := newTestSearch(t, distinctPatterns(2), uniformModel(t, 1000, 0.1, 2), Options{})
	assert.Equal(t, searchtree.NoNode, s.selectChild(s.Root()))
}

func TestUCB1(t *testing.T) {
	// Visited child: mean plus sqrt(2)*sqrt(ln(parent+1)/visits).
	got := UCB1(9, 4, -40)
	want := -40/(4+Epsilon) + math.Sqrt2*math.Sqrt(math.Log(10)/(4+Epsilon))
	assert.Equal(t, want, got)

	// Unvisited child: mean is 0, exploration is huge but finite.
	unvisited := UCB1(1, 0, 0)
	assert.False(t, math.IsInf(unvisited, 0))
	assert.Greater(t, unvisited, 1000.0)

	assert.Equal(t, 0.0, MeanReward(0, 0))
	assert.InDelta(t, -10.0, MeanReward(-20, 2), 1e-5)
}

func TestExpandFailureLeavesNodeUnexpanded(t *testing.T) {
	// Budget of two nodes: the root plus one child. Expanding three
	// children must fail and roll back.
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{MaxNodes: 2})

	_, err := s.Step()
	require.NoError(t, err)

	_, err = s.Step()
	require.Error(t, err)
	assert.True(t, IsAllocationError(err))
	assert.ErrorIs(t, err, searchtree.ErrAllocation)

	var oe *OptimizeError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 2, oe.Iteration)

	root := s.Tree().Node(s.Root())
	assert.Empty(t, root.Children)
	assert.Equal(t, 1, root.Visits, "failed iteration must not backpropagate")
	assert.Equal(t, 1, s.Tree().Len())
	assert.Equal(t, 1, s.Iterations())
}

func TestExtractWithoutIterationsReturnsInputOrder(t *testing.T) {
	patterns := distinctPatterns(4)
	m := uniformModel(t, 1000, 0.3, 4)
	s := newTestSearch(t, patterns, m, Options{})

	p := s.Extract()
	assert.Equal(t, []int{0, 1, 2, 3}, p.Order)
	assert.Equal(t, costmodel.SequenceCost(patterns, []int{0, 1, 2, 3}, m, nil), p.Cost)
	assert.Zero(t, p.Extracted)
	assert.True(t, p.Partial())
}

func TestExtractCompletesShallowTree(t *testing.T) {
	s := newTestSearch(t, distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{})
	for i := 0; i < 3; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	// After three iterations the unvisited third child has the best mean
	// (zero) and no children, so extraction stops one level down.
	p := s.Extract()
	assert.Equal(t, []int{2, 0, 1}, p.Order)
	assert.Equal(t, 1, p.Extracted)
	assert.InDelta(t, 320.0, p.Cost, 1e-9)
	require.NoError(t, p.Validate(3))
}

func TestCloseReleasesTree(t *testing.T) {
	s, err := NewSearch(distinctPatterns(3), uniformModel(t, 1000, 0.1, 3), Options{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	tree := s.Tree()
	require.Positive(t, tree.Len())

	s.Close()
	assert.Zero(t, tree.Len())
	assert.Nil(t, s.Tree())
	s.Close() // idempotent
}
