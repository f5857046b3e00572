package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

func TestTraceText(t *testing.T) {
	out, _, err := execute(t, "trace", specsDir, "--query", "lookup")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for query lookup: 2 pattern(s), 8 iteration(s), stats: workload, join: nested_loop")
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "[2] prefix [0] reward -5600 nodes 3 (expanded)")
	assert.Contains(t, out, "[5] prefix [1 0] reward -5600 nodes 5 (expanded)")
	assert.NotContains(t, out, "[3] prefix")
	assert.Contains(t, out, "Plan: [1 0] cost=5600")
	assert.Contains(t, out, "Chosen by search: 2 of 2")
}

func TestTraceVerboseShowsEveryIteration(t *testing.T) {
	out, _, err := execute(t, "--verbose", "trace", specsDir, "--query", "lookup")
	require.NoError(t, err)

	assert.Contains(t, out, "[1] prefix [] reward -5600 nodes 1\n")
	assert.Contains(t, out, "[3] prefix [1] reward -5600 nodes 3\n")
	assert.Contains(t, out, "[8] prefix [0 1] reward -5600 nodes 5\n")
}

func TestTraceJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "trace", specsDir, "--query", "lookup")
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	result := resp.Data
	assert.Equal(t, "lookup", result.Query)
	assert.Equal(t, 2, result.Patterns)
	require.Len(t, result.Timeline, 8)
	for i, ev := range result.Timeline {
		assert.Equal(t, i+1, ev.Iteration)
		assert.InDelta(t, -5600.0, ev.Reward, 1e-9)
	}
	assert.Equal(t, []int{}, result.Timeline[0].Order)
	assert.Equal(t, 1, result.Timeline[0].Nodes)
	assert.Equal(t, 5, result.Timeline[7].Nodes)

	require.NotNil(t, result.Plan)
	assert.Equal(t, []int{1, 0}, result.Plan.Order)
	assert.Empty(t, result.Error)
}

func TestTraceIterationsOverride(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "trace", specsDir, "--query", "by_author", "--iterations", "3")
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Timeline, 3)
}

func TestTraceUnknownQuery(t *testing.T) {
	out, _, err := execute(t, "trace", specsDir, "--query", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeQueryNotFound)
}

func TestTraceRequiresQueryFlagMessage(t *testing.T) {
	_, _, err := execute(t, "trace", specsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "query" not set`)
}

func TestTraceKeepsPartialTimelineOnFailure(t *testing.T) {
	out, _, err := execute(t, "trace", specsDir, "--query", "by_author", "--max-nodes", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Contains(t, out, "[1] prefix [] reward -6700 nodes 1")
	assert.Contains(t, out, "Error: ")
	assert.NotContains(t, out, "Plan:")
}

func TestTraceFailureJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "trace", specsDir, "--query", "by_author", "--max-nodes", "2")
	require.Error(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeOptimize, resp.Error.Code)
	assert.Len(t, resp.Data.Timeline, 1)
	assert.Nil(t, resp.Data.Plan)
	assert.NotEmpty(t, resp.Data.Error)
}

func TestOutputTraceTextWithoutExpansions(t *testing.T) {
	var sb strings.Builder
	outputTraceText(&sb, TraceResult{
		Query:       "q",
		StatsSource: StatsSourceDefault,
		JoinCost:    "nested_loop",
		Timeline:    []TraceEvent{{Iteration: 1, Order: []int{}, Reward: -1, Nodes: 1}},
		Error:       "boom",
	}, false)

	out := sb.String()
	assert.Contains(t, out, "(no iterations shown)")
	assert.Contains(t, out, "Error: boom")
}
