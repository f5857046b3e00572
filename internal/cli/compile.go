package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledQuery is a query with its content fingerprint.
type CompiledQuery struct {
	ir.QuerySpec
	Fingerprint string `json:"fingerprint"`
}

// CompiledStats is a statistics snapshot with its fingerprint.
type CompiledStats struct {
	ir.StatsSpec
	Fingerprint string `json:"fingerprint"`
}

// CompilationResult holds the compiled workload.
type CompilationResult struct {
	Queries   []CompiledQuery `json:"queries"`
	Stats     *CompiledStats  `json:"stats,omitempty"`
	IRVersion string          `json:"ir_version"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile a CUE workload to canonical IR",
		Long: `Compile the queries and statistics of a CUE workload to IR.

Each query is printed with its fingerprint, the identity under which plans
for it are stored. The statistics snapshot, if any, is fingerprinted the
same way.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := firstLoadError(loadErrors)
		return outputCompileError(formatter, code, message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result, err := buildCompilationResult(loadResult)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	for _, q := range result.Queries {
		formatter.VerboseLog("Compiled query %s: %s", q.Name, q.Fingerprint)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// buildCompilationResult fingerprints every query and the stats snapshot.
func buildCompilationResult(lr *LoadResult) (*CompilationResult, error) {
	result := &CompilationResult{
		Queries:   make([]CompiledQuery, 0, len(lr.Queries)),
		IRVersion: ir.IRVersion,
	}
	for _, q := range lr.Queries {
		fp, err := ir.QueryFingerprint(q.Patterns)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		result.Queries = append(result.Queries, CompiledQuery{QuerySpec: q, Fingerprint: fp})
	}
	if lr.Stats != nil {
		fp, err := ir.StatsFingerprint(*lr.Stats)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		result.Stats = &CompiledStats{StatsSpec: *lr.Stats, Fingerprint: fp}
	}
	return result, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	statsNote := "no stats"
	if result.Stats != nil {
		statsNote = "stats"
	}
	fmt.Fprintf(w, "✓ Compiled %d query(ies), %s\n\n", len(result.Queries), statsNote)

	if len(result.Queries) > 0 {
		fmt.Fprintln(w, "Queries:")
		for _, q := range result.Queries {
			fmt.Fprintf(w, "  %s: %d pattern(s), %d iteration(s), %s\n",
				q.Name, len(q.Patterns), q.Iterations, shortHash(q.Fingerprint))
		}
		fmt.Fprintln(w)
	}

	if result.Stats != nil {
		fmt.Fprintf(w, "Stats: %v triples, %d predicate(s), %d object(s), %s\n\n",
			result.Stats.TotalTriples, len(result.Stats.Predicates), len(result.Stats.Objects),
			shortHash(result.Stats.Fingerprint))
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
// Compilation errors are command-level errors (exit code 2).
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result as indented JSON.
// Canonical JSON is only used for hashing.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// shortHash trims a fingerprint for text output.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
