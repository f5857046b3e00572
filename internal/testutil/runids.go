// Package testutil provides deterministic stand-ins for the random parts
// of the store, so tests and golden output do not depend on the clock.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates run ids "run-0001", "run-0002", ... in call
// order. It implements store.RunIDGenerator.
//
// Unlike UUIDv7 ids the sequence can be reset, so the same test can run
// twice with identical ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialRunIDs creates a generator whose first id is "run-0001".
func NewSequentialRunIDs() *SequentialRunIDs {
	return &SequentialRunIDs{}
}

// Generate returns the next id in the sequence.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("run-%04d", g.seq)
}

// Count returns how many ids have been generated since the last reset.
func (g *SequentialRunIDs) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at "run-0001".
func (g *SequentialRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// FixedRunID returns the same run id every time. Useful when a test
// writes exactly one plan and wants to look it up by a known id.
type FixedRunID string

// Generate returns the fixed id, or "run-fixed" when it is empty.
func (id FixedRunID) Generate() string {
	if id == "" {
		return "run-fixed"
	}
	return string(id)
}
