package mcts

import (
	"context"
	"fmt"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/plan"
)

// Optimizer runs searches with a fixed set of options. It holds no
// per-call state, so one Optimizer may serve concurrent calls as long as
// its Observer is safe for concurrent use.
type Optimizer struct {
	opts Options
}

// New creates an Optimizer.
func New(opts Options) *Optimizer {
	return &Optimizer{opts: opts}
}

// Optimize searches for the cheapest evaluation order of patterns under
// model, spending exactly iterations iterations unless ctx ends first.
//
// Zero patterns yield an empty plan with cost 0. Zero iterations yield the
// input order. The model is only read.
func (o *Optimizer) Optimize(ctx context.Context, patterns []ir.Pattern, model *costmodel.Model, iterations int) (plan.Plan, error) {
	if iterations < 0 {
		return plan.Plan{}, newInvalidInputError("iterations must be non-negative, got %d", iterations)
	}
	if model == nil {
		return plan.Plan{}, newInvalidInputError("cost model is required")
	}
	if len(patterns) == 0 {
		return plan.Empty, nil
	}

	s, err := NewSearch(patterns, model, o.opts)
	if err != nil {
		return plan.Plan{}, err
	}
	defer s.Close()

	s.logger.Debug("optimization started",
		"patterns", len(patterns),
		"iterations", iterations,
		"max_nodes", s.tree.Cap())

	done := ctx.Done()
	for i := 0; i < iterations; i++ {
		if done != nil {
			select {
			case <-done:
				s.logger.Debug("optimization cancelled", "iteration", i+1, "error", ctx.Err())
				return plan.Plan{}, newCancelledError(i+1, ctx.Err())
			default:
			}
		}
		if _, err := s.Step(); err != nil {
			s.logger.Debug("optimization failed", "iteration", i+1, "error", err)
			return plan.Plan{}, err
		}
	}

	p := s.Extract()
	s.logger.Debug("optimization finished",
		"order", p.Order,
		"cost", p.Cost,
		"extracted", p.Extracted,
		"nodes", s.tree.Len())
	return p, nil
}

// OptimizeQuery fetches a model from provider and optimizes q with its own
// iteration budget.
func (o *Optimizer) OptimizeQuery(ctx context.Context, q ir.QuerySpec, provider costmodel.Provider) (plan.Plan, error) {
	model, err := provider.Model(ctx)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("load cost model: %w", err)
	}
	return o.Optimize(ctx, q.Patterns, model, q.Iterations)
}

// Optimize runs a default Optimizer to completion. It cannot be cancelled
// and blocks for the full iteration budget.
func Optimize(patterns []ir.Pattern, model *costmodel.Model, iterations int) (plan.Plan, error) {
	return New(Options{}).Optimize(context.Background(), patterns, model, iterations)
}
