package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// QuerySpec errors (E101-E109)
	ErrQueryNameEmpty         = "E101" // query name is required
	ErrQueryNegativeIteration = "E102" // iterations must be >= 0
	ErrQueryDuplicateName     = "E103" // two queries share a name

	// StatsSpec errors (E110-E119)
	ErrStatsTotalTriples = "E110" // total_triples not finite and >= 0
	ErrStatsSelectivity  = "E111" // selectivity outside (0,1]
	ErrStatsIDOutOfRange = "E112" // id exceeds declared max
	ErrStatsTableTooBig  = "E113" // table would exceed costmodel.MaxTableSize
)

// ValidationError represents a workload validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against workload rules.
// Returns all errors found (does not fail-fast).
// Supports QuerySpec, []QuerySpec and StatsSpec.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.QuerySpec:
		return validateQuerySpec(spec, "")
	case ir.QuerySpec:
		return validateQuerySpec(&spec, "")
	case []ir.QuerySpec:
		return validateQuerySpecs(spec)
	case *ir.StatsSpec:
		return validateStatsSpec(spec)
	case ir.StatsSpec:
		return validateStatsSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateQuerySpec validates one query. prefix qualifies field paths when
// the query is part of a list.
func validateQuerySpec(spec *ir.QuerySpec, prefix string) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + "name",
			Message: "query name is required and must be non-empty",
			Code:    ErrQueryNameEmpty,
		})
	}

	// E102: iterations must be non-negative
	if spec.Iterations < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + "iterations",
			Message: fmt.Sprintf("iterations must be >= 0, got %d", spec.Iterations),
			Code:    ErrQueryNegativeIteration,
		})
	}

	return errs
}

func validateQuerySpecs(specs []ir.QuerySpec) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for i := range specs {
		spec := &specs[i]
		errs = append(errs, validateQuerySpec(spec, fmt.Sprintf("queries[%d].", i))...)

		// E103: duplicate query name
		if spec.Name != "" && seen[spec.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("queries[%d].name", i),
				Message: fmt.Sprintf("duplicate query name: %q", spec.Name),
				Code:    ErrQueryDuplicateName,
			})
		}
		seen[spec.Name] = true
	}

	return errs
}

// validateStatsSpec validates dataset statistics. Unlike ir.StatsSpec's
// own Validate, it reports every problem rather than the first.
func validateStatsSpec(spec *ir.StatsSpec) []ValidationError {
	var errs []ValidationError

	// E110: total_triples must be finite and non-negative
	if math.IsNaN(spec.TotalTriples) || math.IsInf(spec.TotalTriples, 0) || spec.TotalTriples < 0 {
		errs = append(errs, ValidationError{
			Field:   "total_triples",
			Message: fmt.Sprintf("must be a finite non-negative number, got %v", spec.TotalTriples),
			Code:    ErrStatsTotalTriples,
		})
	}

	for _, id := range spec.PredicateIDs() {
		field := fmt.Sprintf("predicates[%d]", id)

		// E111: selectivity range
		if sel := spec.Predicates[id]; !(sel > 0 && sel <= 1) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("selectivity must be in (0,1], got %v", sel),
				Code:    ErrStatsSelectivity,
			})
		}

		// E112: id within declared bound
		if spec.MaxPredicate != nil && id > *spec.MaxPredicate {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("id exceeds max_predicate %d", *spec.MaxPredicate),
				Code:    ErrStatsIDOutOfRange,
			})
		}
	}

	for _, id := range spec.ObjectIDs() {
		if spec.MaxObject != nil && id > *spec.MaxObject {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("objects[%d]", id),
				Message: fmt.Sprintf("id exceeds max_object %d", *spec.MaxObject),
				Code:    ErrStatsIDOutOfRange,
			})
		}
	}

	// E113: dense tables must stay allocatable
	errs = append(errs, validateTableBound("predicate", spec.MaxPredicate, spec.PredicateIDs())...)
	errs = append(errs, validateTableBound("object", spec.MaxObject, spec.ObjectIDs())...)

	return errs
}

// validateTableBound checks the effective table bound (declared or largest
// id) against costmodel.MaxTableSize.
func validateTableBound(kind string, declared *uint64, ids []uint64) []ValidationError {
	var bound uint64
	switch {
	case declared != nil:
		bound = *declared
	case len(ids) > 0:
		bound = ids[len(ids)-1]
	default:
		return nil
	}

	if bound >= costmodel.MaxTableSize {
		return []ValidationError{{
			Field:   "max_" + kind,
			Message: fmt.Sprintf("%s table for id %d exceeds %d entries", kind, bound, costmodel.MaxTableSize),
			Code:    ErrStatsTableTooBig,
		}}
	}
	return nil
}
