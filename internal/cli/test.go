package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden bool     `json:"golden"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML optimizer scenarios and check their assertions.

A scenario names its patterns, statistics, iteration budget and join
heuristic, and asserts on the resulting plan. When golden/<name>.golden
exists next to a scenario, the plan and full iteration trace must also
match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  joinopt test ./scenarios
  joinopt test ./scenarios --filter "skewed_*"
  joinopt test ./scenarios --update
  joinopt test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}

	scenarioFiles, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScanError, "failed to find scenarios", err)
	}

	logger, closeLog, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to configure logging", err)
	}
	defer func() { _ = closeLog() }()

	if len(scenarioFiles) == 0 {
		if formatter.JSON() {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	runner := &scenarioRunner{opts: opts, formatter: formatter, cmd: cmd}
	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, file := range scenarioFiles {
		sr := runner.run(file, logger)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

type scenarioRunner struct {
	opts      *TestOptions
	formatter *OutputFormatter
	cmd       *cobra.Command
}

// run executes one scenario file and reports it in text mode as it goes.
// Assertions always apply; the golden file, when present, additionally
// pins the plan and iteration trace.
func (r *scenarioRunner) run(file string, logger *slog.Logger) ScenarioResult {
	name := filepath.Base(file)

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(name, false, fmt.Sprintf("failed to load scenario: %v", err))
	}
	name = scenario.Name

	result, err := harness.RunContext(r.cmd.Context(), scenario, logger)
	if err != nil {
		return r.fail(name, false, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return r.fail(name, false, fmt.Sprintf("failed to snapshot result: %v", err))
	}
	goldenPath := harness.GoldenPath(file)

	if r.opts.Update {
		if err := updateGoldenFile(goldenPath, snapshot); err != nil {
			return r.fail(name, true, err.Error())
		}
		if !result.Pass {
			return r.fail(name, true, result.Errors...)
		}
		return r.pass(name, true, " (golden updated)")
	}

	golden := false
	if _, err := os.Stat(goldenPath); err == nil {
		golden = true
		match, err := compareWithGolden(goldenPath, snapshot)
		if err != nil {
			return r.fail(name, golden, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return r.fail(name, golden, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return r.fail(name, golden, result.Errors...)
	}
	return r.pass(name, golden, "")
}

// fail prints a failed scenario in text mode and returns its result.
func (r *scenarioRunner) fail(name string, golden bool, errs ...string) ScenarioResult {
	if !r.formatter.JSON() {
		fmt.Fprintf(r.formatter.Writer, "✗ %s\n", name)
		for _, e := range errs {
			fmt.Fprintf(r.formatter.Writer, "  %s\n", e)
		}
	}
	return ScenarioResult{Name: name, Pass: false, Golden: golden, Errors: errs}
}

// pass prints a passed scenario in text mode and returns its result.
func (r *scenarioRunner) pass(name string, golden bool, note string) ScenarioResult {
	if !r.formatter.JSON() {
		fmt.Fprintf(r.formatter.Writer, "✓ %s%s\n", name, note)
	}
	return ScenarioResult{Name: name, Pass: true, Golden: golden}
}

// updateGoldenFile writes the scenario snapshot as its golden file.
func updateGoldenFile(goldenPath string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden reports whether snapshot matches the golden file.
func compareWithGolden(goldenPath string, snapshot []byte) (bool, error) {
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(golden, snapshot), nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
