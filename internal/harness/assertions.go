package harness

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/joinopt/internal/plan"
)

// traceTail is how many trailing iterations an AssertionError prints.
const traceTail = 5

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []IterationEvent // Iterations for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		start := max(len(e.Trace)-traceTail, 0)
		fmt.Fprintf(&buf, "\nLast %d of %d iteration(s):\n", len(e.Trace)-start, len(e.Trace))
		for _, ev := range e.Trace[start:] {
			marker := ""
			if ev.Expanded {
				marker = " (expanded)"
			}
			fmt.Fprintf(&buf, "  [%d] prefix %v reward %s nodes %d%s\n",
				ev.Iteration, ev.Order, plan.FormatCost(ev.Reward), ev.Nodes, marker)
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx context.Context

	// Harness re-runs the scenario for deterministic assertions.
	Harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertError:
			err = assertError(result, assertion)
		case AssertPermutation, AssertOrder, AssertCost, AssertExtracted, AssertNoWorseThanInput, AssertDeterministic:
			if result.ErrorCode != "" {
				err = &AssertionError{
					Type:     assertion.Type,
					Expected: "a plan",
					Actual:   fmt.Sprintf("optimizer failed with %s", result.ErrorCode),
					Trace:    result.Trace,
				}
				break
			}
			err = assertPlan(result, assertion, actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

func assertPlan(result *Result, assertion Assertion, actx *AssertionContext) error {
	switch assertion.Type {
	case AssertPermutation:
		return assertPermutation(result)
	case AssertOrder:
		return assertOrder(result, assertion)
	case AssertCost:
		return assertCost(result, assertion)
	case AssertExtracted:
		return assertExtracted(result, assertion)
	case AssertNoWorseThanInput:
		return assertNoWorseThanInput(result)
	default:
		if actx == nil || actx.Harness == nil {
			return fmt.Errorf("deterministic assertion requires a harness")
		}
		return assertDeterministic(actx.Ctx, actx.Harness, result)
	}
}

// assertPermutation checks that the plan places every input pattern once.
func assertPermutation(result *Result) error {
	if err := result.Plan.Validate(result.Patterns); err != nil {
		return &AssertionError{
			Type:     AssertPermutation,
			Expected: fmt.Sprintf("a permutation of %d pattern(s)", result.Patterns),
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertOrder checks the exact plan order.
func assertOrder(result *Result, assertion Assertion) error {
	if !slices.Equal(result.Plan.Order, assertion.Order) {
		return &AssertionError{
			Type:     AssertOrder,
			Expected: fmt.Sprintf("order %v", assertion.Order),
			Actual:   fmt.Sprintf("order %v", result.Plan.Order),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCost checks the plan cost within tolerance.
func assertCost(result *Result, assertion Assertion) error {
	tol := assertion.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	want := *assertion.Cost
	if math.Abs(result.Plan.Cost-want) > tol {
		return &AssertionError{
			Type:     AssertCost,
			Expected: fmt.Sprintf("cost %s (±%g)", plan.FormatCost(want), tol),
			Actual:   fmt.Sprintf("cost %s", plan.FormatCost(result.Plan.Cost)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertExtracted checks how deep the tree walk went.
func assertExtracted(result *Result, assertion Assertion) error {
	if result.Plan.Extracted != *assertion.Count {
		return &AssertionError{
			Type:     AssertExtracted,
			Expected: fmt.Sprintf("%d pattern(s) chosen by the tree walk", *assertion.Count),
			Actual:   fmt.Sprintf("%d", result.Plan.Extracted),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertNoWorseThanInput checks that the plan is at least as cheap as the
// input order.
func assertNoWorseThanInput(result *Result) error {
	if result.Plan.Cost > result.InputCost+DefaultTolerance {
		return &AssertionError{
			Type:     AssertNoWorseThanInput,
			Expected: fmt.Sprintf("cost <= input order cost %s", plan.FormatCost(result.InputCost)),
			Actual:   fmt.Sprintf("cost %s", plan.FormatCost(result.Plan.Cost)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDeterministic re-runs the search and compares plans.
func assertDeterministic(ctx context.Context, h *Harness, result *Result) error {
	again, err := h.optimize(ctx, nil)
	if err != nil {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: fmt.Sprintf("second run to yield %s", result.Plan),
			Actual:   fmt.Sprintf("second run failed: %v", err),
		}
	}
	if !again.Equal(result.Plan) {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: fmt.Sprintf("second run to yield %s", result.Plan),
			Actual:   again.String(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertError checks that the optimizer failed with the expected code.
func assertError(result *Result, assertion Assertion) error {
	if result.ErrorCode == assertion.Code {
		return nil
	}
	actual := "success with " + result.Plan.String()
	if result.ErrorCode != "" {
		actual = result.ErrorCode
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("optimizer error %s", assertion.Code),
		Actual:   actual,
		Trace:    result.Trace,
	}
}
