package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/joinopt/internal/ir"
)

// =============================================================================
// QuerySpec Validation Tests
// =============================================================================

func TestValidateQuerySpecValid(t *testing.T) {
	spec := &ir.QuerySpec{
		Name:       "lookup",
		Iterations: 100,
		Patterns:   []ir.Pattern{{Predicate: 1, Object: 2}},
	}

	errs := Validate(spec)
	assert.Empty(t, errs, "valid query should have no errors")
}

func TestValidateQuerySpecZeroValuesAllowed(t *testing.T) {
	// No patterns and no iterations are both legal optimizer inputs.
	errs := Validate(ir.QuerySpec{Name: "empty"})
	assert.Empty(t, errs)
}

func TestValidateQuerySpecErrors(t *testing.T) {
	spec := &ir.QuerySpec{
		Name:       "  ",
		Iterations: -5,
	}

	errs := Validate(spec)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrQueryNameEmpty, errs[0].Code)
	assert.Equal(t, ErrQueryNegativeIteration, errs[1].Code)
	assert.Contains(t, errs[1].Message, "-5")
}

func TestValidateQuerySpecsDuplicateNames(t *testing.T) {
	specs := []ir.QuerySpec{
		{Name: "a", Iterations: 1},
		{Name: "b", Iterations: 1},
		{Name: "a", Iterations: 2},
	}

	errs := Validate(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrQueryDuplicateName, errs[0].Code)
	assert.Equal(t, "queries[2].name", errs[0].Field)
}

// =============================================================================
// StatsSpec Validation Tests
// =============================================================================

func uint64Ptr(v uint64) *uint64 { return &v }

func TestValidateStatsSpecValid(t *testing.T) {
	spec := ir.StatsSpec{
		TotalTriples: 1000,
		MaxPredicate: uint64Ptr(10),
		Predicates:   map[uint64]float64{1: 0.5, 10: 1},
		Objects:      map[uint64]uint64{3: 0},
	}

	assert.Empty(t, Validate(spec))
	assert.Empty(t, Validate(&spec))
}

func TestValidateStatsSpecReportsEverything(t *testing.T) {
	spec := &ir.StatsSpec{
		TotalTriples: -1,
		MaxPredicate: uint64Ptr(2),
		MaxObject:    uint64Ptr(1),
		Predicates:   map[uint64]float64{0: 0, 5: 0.5},
		Objects:      map[uint64]uint64{4: 1},
	}

	errs := Validate(spec)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{
		ErrStatsTotalTriples,
		ErrStatsSelectivity,  // predicates[0]
		ErrStatsIDOutOfRange, // predicates[5]
		ErrStatsIDOutOfRange, // objects[4]
	}, codes)
}

func TestValidateStatsSpecTableTooBig(t *testing.T) {
	spec := ir.StatsSpec{
		TotalTriples: 1,
		Objects:      map[uint64]uint64{1 << 30: 1},
	}

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrStatsTableTooBig, errs[0].Code)
	assert.Equal(t, "max_object", errs[0].Field)
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "iterations", Message: "bad", Code: ErrQueryNegativeIteration}
	assert.Equal(t, "[E102] iterations: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E102] line 7: iterations: bad", err.Error())
}
