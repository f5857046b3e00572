package store

import (
	"fmt"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
	"github.com/roach88/joinopt/internal/plan"
)

// PlanRecord is one optimizer run in the plan history.
type PlanRecord struct {
	// ID is the UUIDv7 run id. Assigned by WritePlan when empty.
	ID string `json:"id"`

	// Seq is the insertion order. Assigned by WritePlan.
	Seq int64 `json:"seq"`

	// PlanID is the content-addressed plan identity (ir.PlanID).
	PlanID string `json:"plan_id"`

	Query            string  `json:"query"`
	QueryFingerprint string  `json:"query_fingerprint"`
	StatsFingerprint string  `json:"stats_fingerprint"`
	Iterations       int     `json:"iterations"`
	JoinCost         string  `json:"join_cost"`
	Order            []int   `json:"order"`
	Cost             float64 `json:"cost"`
	Extracted        int     `json:"extracted"`
	OptimizerVersion string  `json:"optimizer_version"`
	IRVersion        string  `json:"ir_version"`
}

// NewPlanRecord describes the result p of optimizing q under statistics
// with fingerprint statsFingerprint. An empty joinCost records the
// nested-loop default.
func NewPlanRecord(q ir.QuerySpec, statsFingerprint, joinCost string, p plan.Plan) (PlanRecord, error) {
	queryFP, err := ir.QueryFingerprint(q.Patterns)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("plan record: %w", err)
	}
	planID, err := p.ID(queryFP, statsFingerprint, q.Iterations)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("plan record: %w", err)
	}
	if joinCost == "" {
		joinCost = costmodel.JoinNestedLoop
	}

	order := make([]int, len(p.Order))
	copy(order, p.Order)

	return PlanRecord{
		PlanID:           planID,
		Query:            q.Name,
		QueryFingerprint: queryFP,
		StatsFingerprint: statsFingerprint,
		Iterations:       q.Iterations,
		JoinCost:         joinCost,
		Order:            order,
		Cost:             p.Cost,
		Extracted:        p.Extracted,
		OptimizerVersion: ir.OptimizerVersion,
		IRVersion:        ir.IRVersion,
	}, nil
}

// Plan returns the stored plan.
func (r PlanRecord) Plan() plan.Plan {
	return plan.New(r.Order, r.Cost, r.Extracted)
}
