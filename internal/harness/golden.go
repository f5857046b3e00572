package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/joinopt/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its fixtures, relative to the
// test's package directory.
const GoldenDir = "testdata/scenarios/golden"

// goldenDigits is the significant-digit precision of floats in snapshots.
// It absorbs last-bit differences from fused multiply-add.
const goldenDigits = 12

// Snapshot renders the scenario outcome as canonical JSON: the plan (or
// error code) and every iteration of the search.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = ir.IRObject{
			"iteration": ir.IRInt(ev.Iteration),
			"order":     intArray(ev.Order),
			"expanded":  ir.IRBool(ev.Expanded),
			"reward":    goldenFloat(ev.Reward),
			"nodes":     ir.IRInt(ev.Nodes),
		}
	}

	snap := ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"trace":         trace,
	}
	if result.ErrorCode != "" {
		snap["error"] = ir.IRString(result.ErrorCode)
	} else {
		snap["plan"] = ir.IRObject{
			"order":     intArray(result.Plan.Order),
			"cost":      goldenFloat(result.Plan.Cost),
			"extracted": ir.IRInt(result.Plan.Extracted),
		}
	}
	return ir.MarshalCanonical(snap)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/scenarios/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A snapshot
// mismatch fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

func intArray(vals []int) ir.IRArray {
	arr := make(ir.IRArray, len(vals))
	for i, v := range vals {
		arr[i] = ir.IRInt(v)
	}
	return arr
}

// goldenFloat encodes a float as a string, since canonical JSON has no
// floats.
func goldenFloat(v float64) ir.IRString {
	return ir.IRString(strconv.FormatFloat(v, 'g', goldenDigits, 64))
}
