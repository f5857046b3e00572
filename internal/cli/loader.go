package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/joinopt/internal/compiler"
	"github.com/roach88/joinopt/internal/ir"
)

// LoadMode controls how errors are handled during workload loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the workload read from a directory.
type LoadResult struct {
	Queries   []ir.QuerySpec
	Stats     *ir.StatsSpec // nil when the workload declares no stats
	CUEValue  cue.Value
	FileCount int
}

// Query returns the query with the given name.
func (r *LoadResult) Query(name string) (ir.QuerySpec, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return ir.QuerySpec{}, false
}

// Select returns the named query, or every query when name is empty.
func (r *LoadResult) Select(name string) ([]ir.QuerySpec, error) {
	if name == "" {
		return r.Queries, nil
	}
	q, ok := r.Query(name)
	if !ok {
		return nil, &LoadError{Code: ErrCodeQueryNotFound, Message: fmt.Sprintf("query %q not found", name)}
	}
	return []ir.QuerySpec{q}, nil
}

// LoadError represents an error that occurred during workload loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads and compiles the CUE workload in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	queriesVal := value.LookupPath(cue.ParsePath("query"))
	if queriesVal.Exists() {
		iter, iterErr := queriesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				spec, compileErr := compiler.CompileQuery(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "query."+iter.Label()))
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Queries = append(result.Queries, *spec)
			}
		}
	}

	statsVal := value.LookupPath(cue.ParsePath("stats"))
	if statsVal.Exists() {
		stats, compileErr := compiler.CompileStats(statsVal)
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "stats"))
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			result.Stats = stats
		}
	}

	if len(result.Queries) == 0 && result.Stats == nil && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no queries or stats found in specs"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// firstLoadError converts the first load error into its code and message.
func firstLoadError(errs []error) (string, string) {
	var loadErr *LoadError
	if errors.As(errs[0], &loadErr) {
		return loadErr.Code, loadErr.Error()
	}
	return ErrCodeGeneric, errs[0].Error()
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeStoreFailed   = "E008" // Database open/read/write error
	ErrCodeQueryNotFound = "E009" // --query names no query in the workload
	ErrCodeOptimize      = "E010" // Optimizer returned an error
	ErrCodeNoStats       = "E011" // No statistics in the workload or store
	ErrCodeReplay        = "E012" // Replayed plan differs from the recorded one
	ErrCodeTestFailed    = "E013" // One or more scenarios failed

	// Workload field errors reuse the compiler's validation codes.
	ErrCodeIterations   = compiler.ErrQueryNegativeIteration
	ErrCodeTotalTriples = compiler.ErrStatsTotalTriples
	ErrCodeSelectivity  = compiler.ErrStatsSelectivity
	ErrCodeTableBound   = compiler.ErrStatsIDOutOfRange
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "iterations":
		return ErrCodeIterations
	case field == "total_triples":
		return ErrCodeTotalTriples
	case strings.HasPrefix(field, "predicates["):
		return ErrCodeSelectivity
	case field == "max_predicate", field == "max_object":
		return ErrCodeTableBound
	default:
		return ErrCodeGeneric
	}
}
