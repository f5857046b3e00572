package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/store"
)

type optimizeResponse struct {
	Status string         `json:"status"`
	Data   OptimizeResult `json:"data"`
	Error  *CLIError      `json:"error"`
}

func optimizeJSON(t *testing.T, args ...string) OptimizeResult {
	t.Helper()
	out, _, err := execute(t, append([]string{"--format", "json", "optimize"}, args...)...)
	require.NoError(t, err)

	var resp optimizeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestOptimizeText(t *testing.T) {
	out, _, err := execute(t, "optimize", specsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Optimized 2 query(ies) (stats: workload")
	assert.Contains(t, out, "join: nested_loop")
	assert.Contains(t, out, "by_author: [0 1 2] cost=6700")
	assert.Contains(t, out, "lookup: [1 0] cost=5600")
	assert.Contains(t, out, "3 of 3 chosen by search, 12 iteration(s)")
	assert.NotContains(t, out, ", run ")
}

func TestOptimizeJSON(t *testing.T) {
	result := optimizeJSON(t, specsDir)

	assert.Equal(t, StatsSourceWorkload, result.StatsSource)
	assert.Equal(t, costmodel.JoinNestedLoop, result.JoinCost)
	require.Len(t, result.Plans, 2)

	p := result.Plans[0]
	assert.Equal(t, "by_author", p.Query)
	assert.Equal(t, []int{0, 1, 2}, p.Order)
	assert.InDelta(t, 6700.0, p.Cost, 1e-9)
	assert.InDelta(t, 6700.0, p.InputCost, 1e-9)
	assert.Equal(t, 3, p.Extracted)
	assert.Equal(t, 12, p.Iterations)
	assert.Empty(t, p.RunID)
	assert.NotEmpty(t, p.PlanID)
	assert.Equal(t, []ir.Pattern{
		{Predicate: 0, Object: 0},
		{Predicate: 1, Object: 0},
		{Predicate: 2, Object: 0},
	}, p.Patterns)
}

func TestOptimizeProbeJoin(t *testing.T) {
	result := optimizeJSON(t, specsDir, "--query", "lookup", "--join-cost", costmodel.JoinProbe)

	require.Len(t, result.Plans, 1)
	p := result.Plans[0]
	assert.Equal(t, []int{1, 0}, p.Order)
	assert.InDelta(t, 5700.0, p.Cost, 1e-9)
	assert.InDelta(t, 10600.0, p.InputCost, 1e-9)
	assert.Equal(t, []ir.Pattern{
		{Predicate: 1, Object: 1},
		{Predicate: 0, Object: 0},
	}, p.Patterns)
}

func TestOptimizeUnknownQuery(t *testing.T) {
	out, _, err := execute(t, "optimize", specsDir, "--query", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeQueryNotFound)
	assert.Contains(t, out, `query "missing" not found`)
}

func TestOptimizeZeroIterationsKeepsInputOrder(t *testing.T) {
	result := optimizeJSON(t, specsDir, "--query", "by_author", "--iterations", "0")

	require.Len(t, result.Plans, 1)
	p := result.Plans[0]
	assert.Equal(t, []int{0, 1, 2}, p.Order)
	assert.Equal(t, 0, p.Extracted)
	assert.Equal(t, 0, p.Iterations)
	assert.InDelta(t, p.InputCost, p.Cost, 1e-9)
}

func TestOptimizeNegativeIterations(t *testing.T) {
	out, _, err := execute(t, "optimize", specsDir, "--iterations", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeIterations)
}

func TestOptimizeInvalidJoinCost(t *testing.T) {
	out, _, err := execute(t, "optimize", specsDir, "--join-cost", "hash")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unknown join cost "hash"`)
}

func TestOptimizeNodeBudgetExceeded(t *testing.T) {
	out, _, err := execute(t, "optimize", specsDir, "--query", "by_author", "--max-nodes", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeOptimize)
	assert.Contains(t, out, "optimizing query by_author")
}

func TestOptimizeRecordsHistory(t *testing.T) {
	db := tempDB(t)
	result := optimizeJSON(t, specsDir, "--db", db)
	require.Len(t, result.Plans, 2)
	for _, p := range result.Plans {
		assert.NotEmpty(t, p.RunID)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	plans, err := st.ListPlans(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	// Newest first.
	assert.Equal(t, "lookup", plans[0].Query)
	assert.Equal(t, result.Plans[1].RunID, plans[0].ID)
	assert.Equal(t, result.Plans[1].PlanID, plans[0].PlanID)
	assert.Equal(t, result.StatsFingerprint, plans[0].StatsFingerprint)
	assert.Equal(t, costmodel.JoinNestedLoop, plans[0].JoinCost)
	assert.Equal(t, "by_author", plans[1].Query)
	assert.Equal(t, []int{0, 1, 2}, plans[1].Order)
}

func TestOptimizePrefersStoreStats(t *testing.T) {
	db := tempDB(t)
	_, _, err := execute(t, "stats", "import", specsDir, "--db", db)
	require.NoError(t, err)

	// A workload without stats still picks up the store's snapshot.
	dir := writeWorkload(t, `
package test

query: lookup: {
	iterations: 8
	patterns: [
		{predicate: 0, object: 0},
		{predicate: 1, object: 1},
	]
}
`)
	result := optimizeJSON(t, dir, "--db", db)
	assert.Equal(t, StatsSourceStore, result.StatsSource)
	require.Len(t, result.Plans, 1)
	assert.InDelta(t, 5600.0, result.Plans[0].Cost, 1e-9)
}

func TestOptimizeDefaultStats(t *testing.T) {
	dir := writeWorkload(t, `
package test

query: q: {iterations: 4, patterns: [{predicate: 1, object: 2}, {predicate: 3, object: 4}]}
`)
	result := optimizeJSON(t, dir)
	assert.Equal(t, StatsSourceDefault, result.StatsSource)
	assert.Equal(t, DefaultStatsFingerprint, result.StatsFingerprint)
}

func TestResolveStats(t *testing.T) {
	ctx := context.Background()
	workload := &ir.StatsSpec{TotalTriples: 100, Predicates: map[uint64]float64{0: 0.5}}
	workloadFP, err := ir.StatsFingerprint(*workload)
	require.NoError(t, err)

	t.Run("default without sources", func(t *testing.T) {
		src, err := resolveStats(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, StatsSourceDefault, src.Name)
		assert.Equal(t, DefaultStatsFingerprint, src.Fingerprint)
	})

	t.Run("workload", func(t *testing.T) {
		src, err := resolveStats(ctx, nil, workload)
		require.NoError(t, err)
		assert.Equal(t, StatsSourceWorkload, src.Name)
		assert.Equal(t, workloadFP, src.Fingerprint)

		m, err := src.Provider.Model(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, costmodel.EstimatePatternCost(ir.Pattern{Predicate: 0, Object: 0}, m), 1e-9)
	})

	t.Run("empty store falls through", func(t *testing.T) {
		st, err := store.Open(tempDB(t))
		require.NoError(t, err)
		defer st.Close()

		src, err := resolveStats(ctx, st, workload)
		require.NoError(t, err)
		assert.Equal(t, StatsSourceWorkload, src.Name)
	})

	t.Run("store wins", func(t *testing.T) {
		st, err := store.Open(tempDB(t))
		require.NoError(t, err)
		defer st.Close()

		stored := ir.StatsSpec{TotalTriples: 7}
		fp, err := st.WriteStats(ctx, stored)
		require.NoError(t, err)

		src, err := resolveStats(ctx, st, workload)
		require.NoError(t, err)
		assert.Equal(t, StatsSourceStore, src.Name)
		assert.Equal(t, fp, src.Fingerprint)
	})
}

func TestInputOrder(t *testing.T) {
	assert.Equal(t, []int{}, inputOrder(0))
	assert.Equal(t, []int{0, 1, 2}, inputOrder(3))
}
