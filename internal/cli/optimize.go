package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/plan"
	"github.com/roach88/joinopt/internal/store"
)

// Statistics sources, in the order optimize prefers them.
const (
	StatsSourceStore    = "store"
	StatsSourceWorkload = "workload"
	StatsSourceDefault  = "default"
)

// DefaultStatsFingerprint identifies plans costed against the placeholder
// statistics of costmodel.DefaultProvider.
const DefaultStatsFingerprint = "default"

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Query      string
	Iterations int // overrides every query's budget when Override is set
	Override   bool
	Database   string
	JoinCost   string
	MaxNodes   int
}

// PlanResult is one optimized query.
type PlanResult struct {
	Query            string       `json:"query"`
	Order            []int        `json:"order"`
	Patterns         []ir.Pattern `json:"patterns"`
	Cost             float64      `json:"cost"`
	InputCost        float64      `json:"input_cost"`
	Extracted        int          `json:"extracted"`
	Iterations       int          `json:"iterations"`
	PlanID           string       `json:"plan_id"`
	RunID            string       `json:"run_id,omitempty"`
	QueryFingerprint string       `json:"query_fingerprint"`
}

// OptimizeResult holds the plans of one optimize invocation.
type OptimizeResult struct {
	StatsSource      string       `json:"stats_source"`
	StatsFingerprint string       `json:"stats_fingerprint"`
	JoinCost         string       `json:"join_cost"`
	Plans            []PlanResult `json:"plans"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <specs-dir>",
		Short: "Search join orders for workload queries",
		Long: `Optimize the join order of every query in a CUE workload.

Statistics come from the first available source:
  1. the store given by --db, if statistics were imported into it
  2. the stats block of the workload
  3. built-in placeholder statistics

With --db every plan is appended to the store's plan history.

Examples:
  joinopt optimize ./specs
  joinopt optimize ./specs --query by_author --iterations 500
  joinopt optimize ./specs --db ./joinopt.db --join-cost probe --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Override = cmd.Flags().Changed("iterations")
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "optimize only this query")
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 0, "override the iteration budget of every query")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite store for statistics and plan history")
	cmd.Flags().StringVar(&opts.JoinCost, "join-cost", costmodel.JoinNestedLoop,
		fmt.Sprintf("join cost heuristic %v", costmodel.JoinCostNames()))
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 0, "bound on search tree nodes (0 = default)")

	return cmd
}

func runOptimize(opts *OptimizeOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	logger, closeLog, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to configure logging", err)
	}
	defer func() { _ = closeLog() }()

	if opts.Override && opts.Iterations < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeIterations,
			fmt.Sprintf("iterations must be non-negative, got %d", opts.Iterations), nil)
	}
	if opts.MaxNodes < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("max-nodes must be non-negative, got %d", opts.MaxNodes), nil)
	}
	join, err := costmodel.JoinCostByName(opts.JoinCost)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid --join-cost", err)
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := firstLoadError(loadErrors)
		return formatter.Fail(ExitCommandError, code, message, nil)
	}
	queries, err := loadResult.Select(opts.Query)
	if err != nil {
		code, message := firstLoadError([]error{err})
		return formatter.Fail(ExitCommandError, code, message, nil)
	}
	logger.Debug("workload loaded", "dir", specsDir, "queries", len(queries))

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	source, err := resolveStats(ctx, st, loadResult.Stats)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to resolve statistics", err)
	}
	model, err := source.Provider.Model(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to build cost model", err)
	}
	logger.Info("statistics resolved", "source", source.Name, "fingerprint", source.Fingerprint)

	opt := mcts.New(mcts.Options{
		MaxNodes: opts.MaxNodes,
		JoinCost: join,
		Logger:   logger,
	})

	result := OptimizeResult{
		StatsSource:      source.Name,
		StatsFingerprint: source.Fingerprint,
		JoinCost:         opts.JoinCost,
		Plans:            make([]PlanResult, 0, len(queries)),
	}
	for _, q := range queries {
		if opts.Override {
			q.Iterations = opts.Iterations
		}

		p, err := opt.Optimize(ctx, q.Patterns, model, q.Iterations)
		if err != nil {
			return formatter.Fail(ExitCommandError, optimizeErrorCode(err),
				fmt.Sprintf("optimizing query %s", q.Name), err)
		}

		rec, err := store.NewPlanRecord(q, source.Fingerprint, opts.JoinCost, p)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to fingerprint plan", err)
		}
		if st != nil {
			rec, err = st.WritePlan(ctx, rec)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to record plan", err)
			}
		}

		pr, err := newPlanResult(q, p, rec, costmodel.SequenceCost(q.Patterns, inputOrder(len(q.Patterns)), model, join))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to apply plan", err)
		}
		logger.Info("query optimized",
			"query", q.Name,
			"order", p.Order,
			"cost", p.Cost,
			"input_cost", pr.InputCost,
			"plan_id", rec.PlanID)
		result.Plans = append(result.Plans, pr)
	}

	return outputOptimizeSuccess(formatter, result)
}

// statsSource is the statistics an optimization is costed against.
type statsSource struct {
	Name        string
	Fingerprint string
	Provider    costmodel.Provider
}

// resolveStats picks the store's statistics when st has any, else the
// workload's, else the placeholder defaults. st may be nil.
func resolveStats(ctx context.Context, st *store.Store, workload *ir.StatsSpec) (statsSource, error) {
	if st != nil {
		_, fp, err := st.ReadStats(ctx)
		switch {
		case err == nil:
			return statsSource{Name: StatsSourceStore, Fingerprint: fp, Provider: st}, nil
		case !errors.Is(err, store.ErrNoStats):
			return statsSource{}, err
		}
	}

	if workload != nil {
		fp, err := ir.StatsFingerprint(*workload)
		if err != nil {
			return statsSource{}, err
		}
		m, err := costmodel.FromStats(*workload)
		if err != nil {
			return statsSource{}, err
		}
		return statsSource{Name: StatsSourceWorkload, Fingerprint: fp, Provider: costmodel.Static(m)}, nil
	}

	return statsSource{
		Name:        StatsSourceDefault,
		Fingerprint: DefaultStatsFingerprint,
		Provider:    costmodel.DefaultProvider{},
	}, nil
}

func newPlanResult(q ir.QuerySpec, p plan.Plan, rec store.PlanRecord, inputCost float64) (PlanResult, error) {
	ordered, err := p.Apply(q.Patterns)
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{
		Query:            q.Name,
		Order:            p.Order,
		Patterns:         ordered,
		Cost:             p.Cost,
		InputCost:        inputCost,
		Extracted:        p.Extracted,
		Iterations:       q.Iterations,
		PlanID:           rec.PlanID,
		RunID:            rec.ID,
		QueryFingerprint: rec.QueryFingerprint,
	}, nil
}

// optimizeErrorCode maps optimizer failures to CLI error codes. Everything
// the optimizer reports shares ErrCodeOptimize; other errors are generic.
func optimizeErrorCode(err error) string {
	var optErr *mcts.OptimizeError
	if errors.As(err, &optErr) {
		return ErrCodeOptimize
	}
	return ErrCodeGeneric
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM, so a long search stops at the next iteration.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping search", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func outputOptimizeSuccess(formatter *OutputFormatter, result OptimizeResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Optimized %d query(ies) (stats: %s %s, join: %s)\n\n",
		len(result.Plans), result.StatsSource, shortHash(result.StatsFingerprint), result.JoinCost)

	for _, p := range result.Plans {
		fmt.Fprintf(w, "  %s: %s\n", p.Query, plan.New(p.Order, p.Cost, p.Extracted))
		fmt.Fprintf(w, "    input order cost=%s, %d of %d chosen by search, %d iteration(s)\n",
			plan.FormatCost(p.InputCost), p.Extracted, len(p.Order), p.Iterations)
		fmt.Fprintf(w, "    plan %s", shortHash(p.PlanID))
		if p.RunID != "" {
			fmt.Fprintf(w, ", run %s", p.RunID)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// inputOrder is the identity order 0..n-1.
func inputOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
