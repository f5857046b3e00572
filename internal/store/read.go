package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/joinopt/internal/costmodel"
	"github.com/roach88/joinopt/internal/ir"
)

var (
	// ErrNoStats is returned when no statistics have been imported.
	ErrNoStats = errors.New("store: no statistics imported")

	// ErrPlanNotFound is returned by ReadPlan for an unknown run id.
	ErrPlanNotFound = errors.New("store: plan not found")
)

// ReadStats returns the current statistics snapshot and its fingerprint.
// Returns ErrNoStats if nothing has been imported.
func (s *Store) ReadStats(ctx context.Context) (ir.StatsSpec, string, error) {
	var (
		stats       ir.StatsSpec
		maxPred     sql.NullInt64
		maxObj      sql.NullInt64
		fingerprint string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total_triples, max_predicate, max_object, fingerprint
		FROM stats_meta
		WHERE id = 1
	`).Scan(&stats.TotalTriples, &maxPred, &maxObj, &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.StatsSpec{}, "", ErrNoStats
	}
	if err != nil {
		return ir.StatsSpec{}, "", fmt.Errorf("read stats: %w", err)
	}
	stats.MaxPredicate = scanBound(maxPred)
	stats.MaxObject = scanBound(maxObj)

	stats.Predicates, err = s.readPredicateStats(ctx)
	if err != nil {
		return ir.StatsSpec{}, "", err
	}
	stats.Objects, err = s.readObjectStats(ctx)
	if err != nil {
		return ir.StatsSpec{}, "", err
	}

	return stats, fingerprint, nil
}

// readPredicateStats returns all predicate selectivities.
func (s *Store) readPredicateStats(ctx context.Context) (map[uint64]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicate_id, selectivity FROM predicate_stats ORDER BY predicate_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query predicate stats: %w", err)
	}
	defer rows.Close()

	preds := map[uint64]float64{}
	for rows.Next() {
		var (
			id  int64
			sel float64
		)
		if err := rows.Scan(&id, &sel); err != nil {
			return nil, fmt.Errorf("scan predicate stats: %w", err)
		}
		preds[uint64(id)] = sel
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predicate stats: %w", err)
	}
	return preds, nil
}

// readObjectStats returns all object cardinalities.
func (s *Store) readObjectStats(ctx context.Context) (map[uint64]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_id, cardinality FROM object_stats ORDER BY object_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query object stats: %w", err)
	}
	defer rows.Close()

	objs := map[uint64]uint64{}
	for rows.Next() {
		var id, card int64
		if err := rows.Scan(&id, &card); err != nil {
			return nil, fmt.Errorf("scan object stats: %w", err)
		}
		objs[uint64(id)] = uint64(card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate object stats: %w", err)
	}
	return objs, nil
}

// Model builds a cost model from the stored statistics. It implements
// costmodel.Provider, so a Store can be handed straight to the optimizer.
func (s *Store) Model(ctx context.Context) (*costmodel.Model, error) {
	stats, _, err := s.ReadStats(ctx)
	if err != nil {
		return nil, err
	}
	m, err := costmodel.FromStats(stats)
	if err != nil {
		return nil, fmt.Errorf("build cost model: %w", err)
	}
	return m, nil
}

var _ costmodel.Provider = (*Store)(nil)

const planColumns = `
	seq, id, plan_id, query_name, query_fingerprint, stats_fingerprint, iterations,
	join_cost, plan_order, cost, extracted, optimizer_version, ir_version
`

// ReadPlan returns the plan history entry with the given run id.
func (s *Store) ReadPlan(ctx context.Context, id string) (PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	rec, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRecord{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return PlanRecord{}, err
	}
	return rec, nil
}

// ListPlans returns up to limit history entries, newest first.
// A limit of zero or less returns every entry.
// Returns an empty slice (not nil) if the history is empty.
func (s *Store) ListPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	return s.queryPlans(ctx, `
		SELECT `+planColumns+` FROM plans
		ORDER BY seq DESC
		LIMIT ?
	`, sqlLimit(limit))
}

// PlansForQuery returns up to limit history entries for one query
// fingerprint, newest first.
func (s *Store) PlansForQuery(ctx context.Context, queryFingerprint string, limit int) ([]PlanRecord, error) {
	return s.queryPlans(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE query_fingerprint = ?
		ORDER BY seq DESC
		LIMIT ?
	`, queryFingerprint, sqlLimit(limit))
}

func (s *Store) queryPlans(ctx context.Context, query string, args ...any) ([]PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	records := []PlanRecord{}
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return records, nil
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (PlanRecord, error) {
	var (
		rec       PlanRecord
		orderJSON string
	)
	err := row.Scan(
		&rec.Seq,
		&rec.ID,
		&rec.PlanID,
		&rec.Query,
		&rec.QueryFingerprint,
		&rec.StatsFingerprint,
		&rec.Iterations,
		&rec.JoinCost,
		&orderJSON,
		&rec.Cost,
		&rec.Extracted,
		&rec.OptimizerVersion,
		&rec.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlanRecord{}, err
		}
		return PlanRecord{}, fmt.Errorf("scan plan: %w", err)
	}

	rec.Order, err = unmarshalOrder(orderJSON)
	if err != nil {
		return PlanRecord{}, err
	}
	return rec, nil
}
