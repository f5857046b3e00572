package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/joinopt/internal/ir"
)

// marshalOrder converts a plan order to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical orders store identical text.
func marshalOrder(order []int) (string, error) {
	arr := make(ir.IRArray, len(order))
	for i, idx := range order {
		arr[i] = ir.IRInt(idx)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}
	return string(data), nil
}

// unmarshalOrder parses a stored plan order.
// Returns an empty slice (not nil) for an empty order.
func unmarshalOrder(data string) ([]int, error) {
	order := []int{}
	if data == "" || data == "[]" {
		return order, nil
	}
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return order, nil
}

// sqlID converts an unsigned id to the signed INTEGER SQLite stores.
// go-sqlite3 rejects uint64 values with the high bit set, so those are
// reported here with the column they were meant for.
func sqlID(kind string, id uint64) (int64, error) {
	if id > math.MaxInt64 {
		return 0, fmt.Errorf("%s %d exceeds the storable range", kind, id)
	}
	return int64(id), nil
}

// nullableID converts an optional bound to a nullable column value.
func nullableID(kind string, id *uint64) (any, error) {
	if id == nil {
		return nil, nil
	}
	return sqlID(kind, *id)
}

// scanBound converts a nullable bound column back to an optional id.
func scanBound(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
