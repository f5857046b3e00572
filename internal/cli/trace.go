package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/plan"
	"github.com/roach88/joinopt/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Query      string
	Iterations int
	Override   bool
	Database   string
	JoinCost   string
	MaxNodes   int
}

// TraceEvent is one search iteration.
type TraceEvent struct {
	Iteration int     `json:"iteration"`
	Order     []int   `json:"order"`
	Expanded  bool    `json:"expanded"`
	Reward    float64 `json:"reward"`
	Nodes     int     `json:"nodes"`
}

// TraceResult holds the iterations of one traced optimization.
type TraceResult struct {
	Query       string       `json:"query"`
	Patterns    int          `json:"patterns"`
	StatsSource string       `json:"stats_source"`
	JoinCost    string       `json:"join_cost"`
	Timeline    []TraceEvent `json:"timeline"`
	Plan        *plan.Plan   `json:"plan,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <specs-dir>",
		Short: "Show every iteration of one query's search",
		Long: `Optimize one query and print each search iteration.

For every iteration the timeline shows the prefix that was simulated, its
reward (the negated cost of the rollout), whether a node was expanded, and
the tree size afterwards. A search that fails still prints the iterations
that completed before the failure.

Statistics are resolved as for optimize. Nothing is written to the store.

Examples:
  joinopt trace ./specs --query by_author
  joinopt trace ./specs --query by_author --iterations 20 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Override = cmd.Flags().Changed("iterations")
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query to trace (required)")
	_ = cmd.MarkFlagRequired("query")
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 0, "override the query's iteration budget")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite store to read statistics from")
	cmd.Flags().StringVar(&opts.JoinCost, "join-cost", costmodel.JoinNestedLoop,
		fmt.Sprintf("join cost heuristic %v", costmodel.JoinCostNames()))
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 0, "bound on search tree nodes (0 = default)")

	return cmd
}

func runTrace(opts *TraceOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	if opts.Override && opts.Iterations < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeIterations,
			fmt.Sprintf("iterations must be non-negative, got %d", opts.Iterations), nil)
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
	q, ok := loadResult.Query(opts.Query)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeQueryNotFound,
			fmt.Sprintf("query %q not found", opts.Query), nil)
	}
	if opts.Override {
		q.Iterations = opts.Iterations
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
		}
		defer st.Close()
	}
	source, err := resolveStats(ctx, st, loadResult.Stats)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to resolve statistics", err)
	}
	model, err := source.Provider.Model(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to build cost model", err)
	}

	result := TraceResult{
		Query:       q.Name,
		Patterns:    len(q.Patterns),
		StatsSource: source.Name,
		JoinCost:    opts.JoinCost,
		Timeline:    []TraceEvent{},
	}
	opt := mcts.New(mcts.Options{
		MaxNodes: opts.MaxNodes,
		JoinCost: join,
		Observer: func(s mcts.IterationStats) {
			order := s.Order
			if order == nil {
				order = []int{}
			}
			result.Timeline = append(result.Timeline, TraceEvent{
				Iteration: s.Iteration,
				Order:     order,
				Expanded:  s.Expanded,
				Reward:    s.Reward,
				Nodes:     s.Nodes,
			})
		},
	})

	p, err := opt.Optimize(ctx, q.Patterns, model, q.Iterations)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Plan = &p
	}

	if formatter.JSON() {
		if err := outputTraceJSON(formatter.Writer, result); err != nil {
			return err
		}
	} else {
		outputTraceText(formatter.Writer, result, formatter.Verbose)
	}

	if result.Error != "" {
		return WrapExitError(ExitCommandError, fmt.Sprintf("optimizing query %s", q.Name), err)
	}
	return nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(w io.Writer, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Error != "" {
		response.Status = "error"
		response.Error = &CLIError{Code: ErrCodeOptimize, Message: result.Error}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text. Without verbose only
// iterations that expanded the tree are listed.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for query %s: %d pattern(s), %d iteration(s), stats: %s, join: %s\n\n",
		result.Query, result.Patterns, len(result.Timeline), result.StatsSource, result.JoinCost)

	fmt.Fprintln(w, "=== Timeline ===")
	shown := 0
	for _, ev := range result.Timeline {
		if !verbose && !ev.Expanded {
			continue
		}
		marker := ""
		if ev.Expanded {
			marker = " (expanded)"
		}
		fmt.Fprintf(w, "  [%d] prefix %v reward %s nodes %d%s\n",
			ev.Iteration, ev.Order, plan.FormatCost(ev.Reward), ev.Nodes, marker)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, "  (no iterations shown)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Result ===")
	if result.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", result.Error)
		return
	}
	fmt.Fprintf(w, "  Plan: %s\n", result.Plan)
	fmt.Fprintf(w, "  Chosen by search: %d of %d\n", result.Plan.Extracted, result.Patterns)
}
