package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/plan"
	"github.com/roach88/joinopt/internal/store"
)

// DefaultHistoryLimit is how many plans history lists without --limit.
const DefaultHistoryLimit = 20

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database    string
	Limit       int
	Fingerprint string // optional - one query only
}

// HistoryResult holds the listed plans, newest first.
type HistoryResult struct {
	Plans []store.PlanRecord `json:"plans"`
	Total int                `json:"total"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plans",
		Long: `List the plans recorded by optimize --db, newest first.

Use --fingerprint with a query fingerprint (as printed by compile) to see
how the plan for one query changed across runs and statistics snapshots.

Examples:
  joinopt history --db ./joinopt.db
  joinopt history --db ./joinopt.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", DefaultHistoryLimit, "maximum number of plans to list")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "list plans for this query fingerprint only")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Limit <= 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("limit must be positive, got %d", opts.Limit), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	var plans []store.PlanRecord
	if opts.Fingerprint != "" {
		plans, err = st.PlansForQuery(cmd.Context(), opts.Fingerprint, opts.Limit)
	} else {
		plans, err = st.ListPlans(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list plans", err)
	}

	result := HistoryResult{Plans: plans, Total: len(plans)}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result)
}

func outputHistoryText(formatter *OutputFormatter, result HistoryResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No plans recorded.")
		return nil
	}

	fmt.Fprintf(w, "%d plan(s), newest first\n\n", result.Total)
	for _, rec := range result.Plans {
		fmt.Fprintf(w, "#%d %s: %s\n", rec.Seq, rec.Query, rec.Plan())
		fmt.Fprintf(w, "  run %s, plan %s, stats %s, %s, %d iteration(s)\n",
			rec.ID, shortHash(rec.PlanID), shortHash(rec.StatsFingerprint), rec.JoinCost, rec.Iterations)
		if formatter.Verbose {
			fmt.Fprintf(w, "  query %s, optimizer %s, ir %s, cost %s\n",
				rec.QueryFingerprint, rec.OptimizerVersion, rec.IRVersion, plan.FormatCost(rec.Cost))
		}
	}
	return nil
}
