package store

import (
	"context"
	"fmt"

	"github.com/roach88/joinopt/internal/ir"
)

// WriteStats replaces the statistics snapshot with s and returns its
// fingerprint. The replacement happens in one transaction: readers see
// either the old snapshot or the new one, never a mix.
func (s *Store) WriteStats(ctx context.Context, stats ir.StatsSpec) (string, error) {
	if err := stats.Validate(); err != nil {
		return "", fmt.Errorf("write stats: %w", err)
	}
	fingerprint, err := ir.StatsFingerprint(stats)
	if err != nil {
		return "", fmt.Errorf("write stats: %w", err)
	}

	maxPred, err := nullableID("max_predicate", stats.MaxPredicate)
	if err != nil {
		return "", fmt.Errorf("write stats: %w", err)
	}
	maxObj, err := nullableID("max_object", stats.MaxObject)
	if err != nil {
		return "", fmt.Errorf("write stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write stats: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM predicate_stats",
		"DELETE FROM object_stats",
		"DELETE FROM stats_meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("write stats: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stats_meta (id, total_triples, max_predicate, max_object, fingerprint)
		VALUES (1, ?, ?, ?, ?)
	`, stats.TotalTriples, maxPred, maxObj, fingerprint); err != nil {
		return "", fmt.Errorf("write stats: meta: %w", err)
	}

	for _, id := range stats.PredicateIDs() {
		pid, err := sqlID("predicate", id)
		if err != nil {
			return "", fmt.Errorf("write stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO predicate_stats (predicate_id, selectivity) VALUES (?, ?)
		`, pid, stats.Predicates[id]); err != nil {
			return "", fmt.Errorf("write stats: predicate %d: %w", id, err)
		}
	}

	for _, id := range stats.ObjectIDs() {
		oid, err := sqlID("object", id)
		if err != nil {
			return "", fmt.Errorf("write stats: %w", err)
		}
		card, err := sqlID("cardinality", stats.Objects[id])
		if err != nil {
			return "", fmt.Errorf("write stats: object %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO object_stats (object_id, cardinality) VALUES (?, ?)
		`, oid, card); err != nil {
			return "", fmt.Errorf("write stats: object %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write stats: commit: %w", err)
	}
	return fingerprint, nil
}

// WritePlan appends rec to the plan history and returns it with ID and
// Seq filled in. A record without an ID gets one from the store's run id
// generator, a UUIDv7 unless WithRunIDs says otherwise.
func (s *Store) WritePlan(ctx context.Context, rec PlanRecord) (PlanRecord, error) {
	if rec.ID == "" {
		rec.ID = s.ids.Generate()
	}

	orderJSON, err := marshalOrder(rec.Order)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("write plan: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO plans
		(id, plan_id, query_name, query_fingerprint, stats_fingerprint, iterations,
		 join_cost, plan_order, cost, extracted, optimizer_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.PlanID,
		rec.Query,
		rec.QueryFingerprint,
		rec.StatsFingerprint,
		rec.Iterations,
		rec.JoinCost,
		orderJSON,
		rec.Cost,
		rec.Extracted,
		rec.OptimizerVersion,
		rec.IRVersion,
	)
	if err != nil {
		return PlanRecord{}, fmt.Errorf("write plan: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return PlanRecord{}, fmt.Errorf("write plan: seq: %w", err)
	}
	rec.Seq = seq
	return rec, nil
}
