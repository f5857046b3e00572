package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"

	"github.com/roach88/joinopt/internal/ir"
)

// CompileStats parses a CUE `stats` struct into a StatsSpec.
//
// Ids in the predicates and objects maps are written as quoted field
// labels ("12": 0.5) because CUE labels are strings.
func CompileStats(v cue.Value) (*ir.StatsSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.StatsSpec{}

	totalVal := v.LookupPath(cue.ParsePath("total_triples"))
	if !totalVal.Exists() {
		return nil, &CompileError{
			Field:   "total_triples",
			Message: "total_triples is required",
			Pos:     v.Pos(),
		}
	}
	total, err := totalVal.Float64()
	if err != nil {
		return nil, &CompileError{Field: "total_triples", Message: err.Error(), Pos: totalVal.Pos()}
	}
	spec.TotalTriples = total

	if spec.MaxPredicate, err = optionalUint(v, "max_predicate"); err != nil {
		return nil, err
	}
	if spec.MaxObject, err = optionalUint(v, "max_object"); err != nil {
		return nil, err
	}

	if spec.Predicates, err = parseIDMap(v, "predicates", func(fv cue.Value) (float64, error) {
		return fv.Float64()
	}); err != nil {
		return nil, err
	}
	if spec.Objects, err = parseIDMap(v, "objects", func(fv cue.Value) (uint64, error) {
		return fv.Uint64()
	}); err != nil {
		return nil, err
	}

	return spec, nil
}

func optionalUint(v cue.Value, name string) (*uint64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	n, err := fv.Uint64()
	if err != nil {
		return nil, &CompileError{Field: name, Message: err.Error(), Pos: fv.Pos()}
	}
	return &n, nil
}

// parseIDMap reads an optional struct whose labels are decimal ids.
func parseIDMap[T any](v cue.Value, name string, decode func(cue.Value) (T, error)) (map[uint64]T, error) {
	mv := v.LookupPath(cue.ParsePath(name))
	if !mv.Exists() {
		return nil, nil
	}

	iter, err := mv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := map[uint64]T{}
	for iter.Next() {
		label := iter.Label()
		field := fmt.Sprintf("%s[%q]", name, label)

		id, err := strconv.ParseUint(label, 10, 64)
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "label must be a decimal id",
				Pos:     iter.Value().Pos(),
			}
		}

		val, err := decode(iter.Value())
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		out[id] = val
	}
	return out, nil
}
