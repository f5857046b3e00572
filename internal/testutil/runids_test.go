package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialRunIDs_Order(t *testing.T) {
	gen := NewSequentialRunIDs()
	assert.Equal(t, int64(0), gen.Count())

	assert.Equal(t, "run-0001", gen.Generate())
	assert.Equal(t, "run-0002", gen.Generate())
	assert.Equal(t, "run-0003", gen.Generate())
	assert.Equal(t, int64(3), gen.Count())
}

func TestSequentialRunIDs_Reset(t *testing.T) {
	gen := NewSequentialRunIDs()
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, int64(0), gen.Count())
	assert.Equal(t, "run-0001", gen.Generate())
}

func TestSequentialRunIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialRunIDs()
	const workers = 50
	const perWorker = 40

	var wg sync.WaitGroup
	results := make([][]string, workers)
	for i := 0; i < workers; i++ {
		results[i] = make([]string, perWorker)
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results[idx][j] = gen.Generate()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, ids := range results {
		for _, id := range ids {
			require.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), gen.Count())
}

func TestFixedRunID(t *testing.T) {
	assert.Equal(t, "run-abc", FixedRunID("run-abc").Generate())
	assert.Equal(t, "run-abc", FixedRunID("run-abc").Generate())
	assert.Equal(t, "run-fixed", FixedRunID("").Generate())
}
