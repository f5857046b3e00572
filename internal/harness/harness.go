package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/logging"
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/plan"
)

// Harness runs scenarios against one cost model and join heuristic.
type Harness struct {
	scenario *Scenario
	model    *costmodel.Model
	join     costmodel.JoinCostFunc
	logger   *slog.Logger
}

// New prepares a harness for scenario. The cost model is built once and
// shared by every run, as the optimizer only reads it.
func New(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	join, err := costmodel.JoinCostByName(scenario.JoinCost)
	if err != nil {
		return nil, fmt.Errorf("join cost: %w", err)
	}

	var provider costmodel.Provider = costmodel.DefaultProvider{}
	if scenario.Stats != nil {
		m, err := costmodel.FromStats(*scenario.Stats)
		if err != nil {
			return nil, fmt.Errorf("build cost model: %w", err)
		}
		provider = costmodel.Static(m)
	}
	model, err := provider.Model(ctx)
	if err != nil {
		return nil, fmt.Errorf("build cost model: %w", err)
	}

	return &Harness{
		scenario: scenario,
		model:    model,
		join:     join,
		logger:   logger.With("scenario", scenario.Name),
	}, nil
}

// Run executes a scenario with a background context and discarded logs.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext executes a scenario and evaluates its assertions.
//
// An optimizer failure is not an execution error: it is recorded in
// Result.ErrorCode so that error assertions can check it. The returned
// error covers only problems that prevent running the scenario at all.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	h, err := New(ctx, scenario, logger)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Patterns = len(scenario.Patterns)
	result.InputCost = costmodel.SequenceCost(scenario.Patterns, inputOrder(len(scenario.Patterns)), h.model, h.join)

	p, err := h.optimize(ctx, result.AddIteration)
	if err != nil {
		var optErr *mcts.OptimizeError
		if !errors.As(err, &optErr) {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		result.ErrorCode = string(optErr.Code)
		h.logger.Info("optimizer failed", "code", optErr.Code, "iteration", optErr.Iteration)
	} else {
		result.Plan = p
		h.logger.Info("optimizer finished", "order", p.Order, "cost", p.Cost, "extracted", p.Extracted)
	}

	actx := &AssertionContext{Ctx: ctx, Harness: h}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// optimize runs the optimizer once, reporting each iteration to observe.
func (h *Harness) optimize(ctx context.Context, observe mcts.Observer) (plan.Plan, error) {
	opt := mcts.New(mcts.Options{
		MaxNodes: h.scenario.MaxNodes,
		JoinCost: h.join,
		Logger:   h.logger,
		Observer: observe,
	})
	return opt.Optimize(ctx, h.scenario.Patterns, h.model, h.scenario.Iterations)
}

// inputOrder is the identity order 0..n-1.
func inputOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
