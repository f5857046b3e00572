package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/plan"
)

const scenarioDir = "testdata/scenarios"

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// uniformScenario is three patterns that each cost 100.
func uniformScenario(iterations int, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "uniform",
		Description: "three equal patterns",
		Iterations:  iterations,
		Patterns: []ir.Pattern{
			{Predicate: 0}, {Predicate: 1}, {Predicate: 2},
		},
		Stats: &ir.StatsSpec{
			TotalTriples: 1000,
			Predicates:   map[uint64]float64{0: 0.1, 1: 0.1, 2: 0.1},
		},
		Assertions: assertions,
	}
}

func TestScenarios(t *testing.T) {
	files, err := FindScenarios(scenarioDir, "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenariosGolden(t *testing.T) {
	for _, name := range []string{"two_uniform", "skewed_three", "probe_two", "allocation_failure", "empty_query"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RecordsTrace(t *testing.T) {
	result, err := Run(loadTestScenario(t, "two_uniform"))
	require.NoError(t, err)

	require.Len(t, result.Trace, 8)
	for i, ev := range result.Trace {
		assert.Equal(t, i+1, ev.Iteration)
		assert.Equal(t, -210.0, ev.Reward)
	}
	assert.Empty(t, result.Trace[0].Order)
	assert.False(t, result.Trace[0].Expanded)
	assert.True(t, result.Trace[1].Expanded)
	assert.Equal(t, 3, result.Trace[1].Nodes)
	assert.Equal(t, 5, result.Trace[7].Nodes)

	assert.Equal(t, 2, result.Patterns)
	assert.Equal(t, 210.0, result.InputCost)
	assert.Empty(t, result.ErrorCode)
}

func TestRun_OptimizerFailureIsRecorded(t *testing.T) {
	result, err := Run(loadTestScenario(t, "allocation_failure"))
	require.NoError(t, err)

	assert.Equal(t, "ALLOCATION_FAILED", result.ErrorCode)
	assert.Equal(t, plan.Plan{}, result.Plan)
	require.Len(t, result.Trace, 1)
	assert.True(t, result.Pass)
}

func TestRun_DefaultStats(t *testing.T) {
	result, err := Run(loadTestScenario(t, "default_stats"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace)
	assert.InDelta(t, 2960.494069, result.InputCost, 1e-6)
}

func TestRunContext_LogsScenario(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := RunContext(context.Background(), loadTestScenario(t, "probe_two"), logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario=probe_two")
	assert.Contains(t, buf.String(), "optimizer finished")
}

func TestRunContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := uniformScenario(10, Assertion{Type: AssertError, Code: "CANCELLED"})
	result, err := RunContext(ctx, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", result.ErrorCode)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidStats(t *testing.T) {
	s := uniformScenario(1, Assertion{Type: AssertPermutation})
	s.Stats.MaxPredicate = new(uint64) // predicates 1 and 2 exceed it

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build cost model")
}

func TestAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantType  string
		wantText  string
	}{
		{"order", Assertion{Type: AssertOrder, Order: []int{0, 1, 2}}, AssertOrder, "order [0 1 2]"},
		{"cost", Assertion{Type: AssertCost, Cost: floatPtr(1)}, AssertCost, "cost 1 (±1e-06)"},
		{"extracted", Assertion{Type: AssertExtracted, Count: intPtr(0)}, AssertExtracted, "0 pattern(s) chosen"},
		{"error", Assertion{Type: AssertError, Code: "CANCELLED"}, AssertError, "success with"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(uniformScenario(3, tt.assertion))
			require.NoError(t, err)
			require.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "Assertion failed: "+tt.wantType)
			assert.Contains(t, result.Errors[0], tt.wantText)
			assert.Contains(t, result.Errors[0], "Last 3 of 3 iteration(s)")
		})
	}
}

func TestAssertions_PassOnUniform(t *testing.T) {
	// Three iterations visit the root, expand it and try the second child.
	// Extraction then prefers the unvisited third child, whose mean is 0.
	result, err := Run(uniformScenario(3,
		Assertion{Type: AssertPermutation},
		Assertion{Type: AssertOrder, Order: []int{2, 0, 1}},
		Assertion{Type: AssertCost, Cost: floatPtr(320)},
		Assertion{Type: AssertExtracted, Count: intPtr(1)},
		Assertion{Type: AssertNoWorseThanInput},
		Assertion{Type: AssertDeterministic},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertions_PlanAssertionsFailAfterError(t *testing.T) {
	s := uniformScenario(5, Assertion{Type: AssertPermutation}, Assertion{Type: AssertDeterministic})
	s.MaxNodes = 2

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	for _, msg := range result.Errors {
		assert.Contains(t, msg, "optimizer failed with ALLOCATION_FAILED")
	}
}

func TestEvaluateAssertions_DeterministicNeedsHarness(t *testing.T) {
	result := NewResult()
	result.Plan = plan.New([]int{0}, 1, 1)
	result.Patterns = 1

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertDeterministic}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires a harness")
}

func TestAssertionError_TraceTail(t *testing.T) {
	e := &AssertionError{Type: AssertOrder, Expected: "x", Actual: "y"}
	for i := 1; i <= 8; i++ {
		e.Trace = append(e.Trace, IterationEvent{Iteration: i, Order: []int{}, Reward: -1})
	}
	e.Trace[7].Expanded = true

	msg := e.Error()
	assert.Contains(t, msg, "Last 5 of 8 iteration(s)")
	assert.NotContains(t, msg, "[3] prefix")
	assert.Contains(t, msg, "[4] prefix [] reward -1 nodes 0\n")
	assert.Contains(t, msg, "[8] prefix [] reward -1 nodes 0 (expanded)")
}

func TestSnapshot(t *testing.T) {
	result := NewResult()
	result.Plan = plan.New([]int{1, 0}, 1234.5, 1)
	result.AddIteration(mcts.IterationStats{Iteration: 1, Reward: -1015, Nodes: 1})

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"plan":{"cost":"1234.5","extracted":1,"order":[1,0]},"scenario_name":"snap",`+
			`"trace":[{"expanded":false,"iteration":1,"nodes":1,"order":[],"reward":"-1015"}]}`,
		string(data))

	result.ErrorCode = "CANCELLED"
	data, err = Snapshot("snap", result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"CANCELLED"`)
	assert.NotContains(t, string(data), `"plan"`)
}

func TestGoldenFloat(t *testing.T) {
	assert.Equal(t, ir.IRString("210"), goldenFloat(210))
	assert.Equal(t, ir.IRString("48812.5"), goldenFloat(48812.5))
	assert.Equal(t, ir.IRString("990.099009901"), goldenFloat(1e6*0.1*(1.0/101.0)))
	assert.Equal(t, ir.IRString("1e+15"), goldenFloat(1e15))
}
