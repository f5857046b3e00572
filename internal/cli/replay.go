package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/store"
)

// Replay outcomes for one recorded plan.
const (
	ReplayMatch    = "match"
	ReplayMismatch = "mismatch"
	ReplaySkipped  = "skipped"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - one recorded run only
	Limit    int
}

// ReplayPlanResult holds the replay outcome of one recorded plan.
type ReplayPlanResult struct {
	RunID    string `json:"run_id"`
	Query    string `json:"query"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Plans         []ReplayPlanResult `json:"plans"`
	Total         int                `json:"total"`
	Matched       int                `json:"matched"`
	Mismatched    int                `json:"mismatched"`
	Skipped       int                `json:"skipped"`
	Deterministic bool               `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Re-run recorded plans and verify determinism",
		Long: `Re-optimize recorded plans and check that the search reproduces them.

Each plan is replayed with the query from the workload, the statistics it
was costed against, and the recorded join heuristic and iteration budget.
A plan is skipped when its query no longer matches the workload or its
statistics are no longer available.

Exit codes:
  0 - Every replayed plan matched
  1 - At least one plan differs from its recording
  2 - Command error (database not found, etc.)

Examples:
  joinopt replay ./specs --db ./joinopt.db
  joinopt replay ./specs --db ./joinopt.db --run 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay one recorded run only")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "replay at most this many recent plans (0 = all)")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	logger, closeLog, err := newLogger(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to configure logging", err)
	}
	defer func() { _ = closeLog() }()

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := firstLoadError(loadErrors)
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	var records []store.PlanRecord
	if opts.RunID != "" {
		rec, err := st.ReadPlan(ctx, opts.RunID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read plan", err)
		}
		records = []store.PlanRecord{rec}
	} else {
		records, err = st.ListPlans(ctx, opts.Limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list plans", err)
		}
	}

	result := ReplayResult{
		Plans:         make([]ReplayPlanResult, 0, len(records)),
		Total:         len(records),
		Deterministic: true,
	}

	r := &replayer{store: st, workload: loadResult, logger: logger}
	for _, rec := range records {
		pr, err := r.replay(ctx, rec)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to replay run %s", rec.ID), err)
		}
		logger.Debug("plan replayed", "run", rec.ID, "query", rec.Query, "status", pr.Status)

		switch pr.Status {
		case ReplayMatch:
			result.Matched++
		case ReplayMismatch:
			result.Mismatched++
			result.Deterministic = false
		default:
			result.Skipped++
		}
		result.Plans = append(result.Plans, pr)
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replayer re-optimizes recorded plans against one workload and store.
type replayer struct {
	store    *store.Store
	workload *LoadResult
	logger   *slog.Logger
}

func (r *replayer) replay(ctx context.Context, rec store.PlanRecord) (ReplayPlanResult, error) {
	out := ReplayPlanResult{
		RunID:    rec.ID,
		Query:    rec.Query,
		Recorded: rec.Plan().String(),
	}
	skip := func(reason string) (ReplayPlanResult, error) {
		out.Status = ReplaySkipped
		out.Reason = reason
		return out, nil
	}

	q, ok := r.workload.Query(rec.Query)
	if !ok {
		return skip("query not in workload")
	}
	fp, err := ir.QueryFingerprint(q.Patterns)
	if err != nil {
		return ReplayPlanResult{}, err
	}
	if fp != rec.QueryFingerprint {
		return skip("query patterns changed since the plan was recorded")
	}

	provider, err := r.statsFor(ctx, rec.StatsFingerprint)
	if err != nil {
		return ReplayPlanResult{}, err
	}
	if provider == nil {
		return skip(fmt.Sprintf("statistics %s no longer available", shortHash(rec.StatsFingerprint)))
	}
	model, err := provider.Model(ctx)
	if err != nil {
		return ReplayPlanResult{}, err
	}

	join, err := costmodel.JoinCostByName(rec.JoinCost)
	if err != nil {
		return skip(err.Error())
	}

	opt := mcts.New(mcts.Options{JoinCost: join, Logger: r.logger})
	p, err := opt.Optimize(ctx, q.Patterns, model, rec.Iterations)
	if mcts.IsAllocationError(err) {
		out.Status = ReplayMismatch
		out.Reason = err.Error()
		return out, nil
	}
	if err != nil {
		return ReplayPlanResult{}, err
	}
	out.Replayed = p.String()

	planID, err := p.ID(rec.QueryFingerprint, rec.StatsFingerprint, rec.Iterations)
	if err != nil {
		return ReplayPlanResult{}, err
	}
	if planID == rec.PlanID && p.Equal(rec.Plan()) {
		out.Status = ReplayMatch
	} else {
		out.Status = ReplayMismatch
	}
	return out, nil
}

// statsFor returns a provider for the statistics snapshot with the given
// fingerprint, or nil when neither the store, the workload nor the
// placeholder defaults match it.
func (r *replayer) statsFor(ctx context.Context, fingerprint string) (costmodel.Provider, error) {
	if fingerprint == DefaultStatsFingerprint {
		return costmodel.DefaultProvider{}, nil
	}

	_, fp, err := r.store.ReadStats(ctx)
	switch {
	case err == nil && fp == fingerprint:
		return r.store, nil
	case err != nil && !errors.Is(err, store.ErrNoStats):
		return nil, err
	}

	if r.workload.Stats != nil {
		fp, err := ir.StatsFingerprint(*r.workload.Stats)
		if err != nil {
			return nil, err
		}
		if fp == fingerprint {
			m, err := costmodel.FromStats(*r.workload.Stats)
			if err != nil {
				return nil, err
			}
			return costmodel.Static(m), nil
		}
	}
	return nil, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplay,
			Message: fmt.Sprintf("%d plan(s) differ from their recording", result.Mismatched),
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No plans recorded.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d plan(s), %d matched, %d mismatched, %d skipped\n\n",
		result.Total, result.Matched, result.Mismatched, result.Skipped)

	for _, p := range result.Plans {
		switch p.Status {
		case ReplayMatch:
			fmt.Fprintf(w, "✓ %s (run %s)\n", p.Query, p.RunID)
			if formatter.Verbose {
				fmt.Fprintf(w, "  %s\n", p.Recorded)
			}
		case ReplayMismatch:
			fmt.Fprintf(w, "✗ %s (run %s)\n", p.Query, p.RunID)
			fmt.Fprintf(w, "  recorded: %s\n", p.Recorded)
			if p.Reason != "" {
				fmt.Fprintf(w, "  replay failed: %s\n", p.Reason)
			} else {
				fmt.Fprintf(w, "  replayed: %s\n", p.Replayed)
			}
		default:
			fmt.Fprintf(w, "- %s (run %s): %s\n", p.Query, p.RunID, p.Reason)
		}
	}
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ All replayed plans verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
