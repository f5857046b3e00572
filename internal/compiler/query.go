package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/joinopt/internal/ir"
)

// CompileQuery parses a CUE value into a QuerySpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: lookup: { iterations: 100, patterns: [...] }`)
//	spec, err := CompileQuery(v.LookupPath(cue.ParsePath("query.lookup")))
func CompileQuery(v cue.Value) (*ir.QuerySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.QuerySpec{}

	// Query name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labelName(labels[len(labels)-1])
	}

	// Parse iterations (required)
	iterVal := v.LookupPath(cue.ParsePath("iterations"))
	if !iterVal.Exists() {
		return nil, &CompileError{
			Field:   "iterations",
			Message: "iterations is required",
			Pos:     v.Pos(),
		}
	}
	iterations, err := iterVal.Int64()
	if err != nil {
		return nil, &CompileError{Field: "iterations", Message: err.Error(), Pos: iterVal.Pos()}
	}
	spec.Iterations = int(iterations)

	// Parse patterns (required, may be empty)
	patVal := v.LookupPath(cue.ParsePath("patterns"))
	if !patVal.Exists() {
		return nil, &CompileError{
			Field:   "patterns",
			Message: "patterns is required",
			Pos:     v.Pos(),
		}
	}
	spec.Patterns, err = parsePatterns(patVal)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileQueries compiles every field of a `query` struct, in source order.
func CompileQueries(v cue.Value) ([]ir.QuerySpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var queries []ir.QuerySpec
	for iter.Next() {
		spec, err := CompileQuery(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", iter.Label(), err)
		}
		queries = append(queries, *spec)
	}
	return queries, nil
}

// parsePatterns reads a list of {predicate, object} structs.
func parsePatterns(v cue.Value) ([]ir.Pattern, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	patterns := []ir.Pattern{}
	for i := 0; iter.Next(); i++ {
		p, err := parsePattern(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func parsePattern(v cue.Value, index int) (ir.Pattern, error) {
	var p ir.Pattern

	pred, err := requireUint(v, "predicate", fmt.Sprintf("patterns[%d].predicate", index))
	if err != nil {
		return p, err
	}
	obj, err := requireUint(v, "object", fmt.Sprintf("patterns[%d].object", index))
	if err != nil {
		return p, err
	}

	p.Predicate = pred
	p.Object = obj
	return p, nil
}

// requireUint reads a required non-negative integer field.
func requireUint(v cue.Value, name, field string) (uint64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fv.Uint64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return n, nil
}

// labelName returns a field label without quotes.
func labelName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}
