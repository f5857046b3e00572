package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/compiler"
	"github.com/roach88/joinopt/internal/store"
)

// StatsOptions holds flags shared by the stats subcommands.
type StatsOptions struct {
	*RootOptions
	Database string
}

// NewStatsCommand creates the stats command and its subcommands.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Manage the statistics snapshot of a store",
		Long: `Import and inspect the dataset statistics kept in a SQLite store.

A store holds one snapshot at a time; importing replaces it. Plans record
the fingerprint of the snapshot they were costed against.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(&cobra.Command{
		Use:   "import <specs-dir>",
		Short: "Import the workload's stats block into the store",
		Example: `  joinopt stats import ./specs --db ./joinopt.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsImport(opts, args[0], cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the store's statistics snapshot",
		Example: `  joinopt stats show --db ./joinopt.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatsShow(opts, cmd)
		},
	})

	return cmd
}

func runStatsImport(opts *StatsOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := firstLoadError(loadErrors)
		return formatter.Fail(ExitCommandError, code, message, nil)
	}
	if loadResult.Stats == nil {
		return formatter.Fail(ExitCommandError, ErrCodeNoStats,
			fmt.Sprintf("workload in %s declares no stats", specsDir), nil)
	}
	if errs := compiler.Validate(*loadResult.Stats); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	fp, err := st.WriteStats(cmd.Context(), *loadResult.Stats)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to import statistics", err)
	}

	stats := CompiledStats{StatsSpec: *loadResult.Stats, Fingerprint: fp}
	if formatter.JSON() {
		return formatter.Success(stats)
	}
	fmt.Fprintf(formatter.Writer, "✓ Imported stats into %s\n", opts.Database)
	printStats(formatter, stats)
	return nil
}

func runStatsShow(opts *StatsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	spec, fp, err := st.ReadStats(cmd.Context())
	if errors.Is(err, store.ErrNoStats) {
		return formatter.Fail(ExitCommandError, ErrCodeNoStats,
			fmt.Sprintf("no statistics imported into %s", opts.Database), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read statistics", err)
	}

	stats := CompiledStats{StatsSpec: spec, Fingerprint: fp}
	if formatter.JSON() {
		return formatter.Success(stats)
	}
	printStats(formatter, stats)
	return nil
}

func printStats(formatter *OutputFormatter, stats CompiledStats) {
	w := formatter.Writer
	fmt.Fprintf(w, "Stats: %v triples, %d predicate(s), %d object(s), %s\n",
		stats.TotalTriples, len(stats.Predicates), len(stats.Objects), shortHash(stats.Fingerprint))

	if !formatter.Verbose {
		return
	}
	for _, id := range stats.PredicateIDs() {
		fmt.Fprintf(w, "  predicate %d: selectivity %v\n", id, stats.Predicates[id])
	}
	for _, id := range stats.ObjectIDs() {
		fmt.Fprintf(w, "  object %d: cardinality %d\n", id, stats.Objects[id])
	}
}
