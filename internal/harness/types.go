package harness

import (
	"github.com/roach88/joinopt/internal/mcts"
	"github.com/roach88/joinopt/internal/plan"
)

// IterationEvent is one search iteration as seen by the observer.
type IterationEvent struct {
	Iteration int     `json:"iteration"`
	Order     []int   `json:"order"`
	Expanded  bool    `json:"expanded"`
	Reward    float64 `json:"reward"`
	Nodes     int     `json:"nodes"`
}

func newIterationEvent(s mcts.IterationStats) IterationEvent {
	order := s.Order
	if order == nil {
		order = []int{}
	}
	return IterationEvent{
		Iteration: s.Iteration,
		Order:     order,
		Expanded:  s.Expanded,
		Reward:    s.Reward,
		Nodes:     s.Nodes,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every assertion held.
	Pass bool `json:"pass"`

	// Plan is the optimizer result. Zero when the optimizer failed.
	Plan plan.Plan `json:"plan"`

	// Patterns is the query size.
	Patterns int `json:"patterns"`

	// InputCost is the cost of evaluating the patterns in input order.
	InputCost float64 `json:"input_cost"`

	// ErrorCode is the optimizer error code, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Trace holds every completed iteration in order.
	Trace []IterationEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []IterationEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddIteration appends an observed iteration to the trace.
func (r *Result) AddIteration(s mcts.IterationStats) {
	r.Trace = append(r.Trace, newIterationEvent(s))
}
