package utils

import (
	"sync"
	"testing"
)

func TestWorkerPool(t *testing.T) {
	numResults := 10000

	pool := NewWorkerPool(4)
	pool.Start()

	var mu sync.Mutex
	results := make([]int, 0)

	for i := 0; i < numResults; i++ {
		n := i
		pool.SubmitOrRun(func() {
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
		})
	}

	pool.Wait()
	pool.Stop()

	if len(results) != numResults {
		t.Errorf("Expected %d results, got %d", numResults, len(results))
	}

	resultSet := make(map[int]struct{})
	for _, r := range results {
		resultSet[r] = struct{}{}
	}

	for i := 0; i < numResults; i++ {
		if _, ok := resultSet[i]; !ok {
			t.Errorf("Missing result: %d", i)
		}
	}
}

func TestWorkerPoolRunsInlineWhenSaturated(t *testing.T) {
	pool := NewWorkerPool(1)
	// Not started; every task must run on the caller's goroutine.

	// The task channel has capacity, so the first submission is
	// buffered. Verify the next task runs inline.
	pool.SubmitOrRun(func() {})

	inline := false
	pool.SubmitOrRun(func() {
		inline = true
	})

	if !inline {
		t.Error("Expected task to run inline when the pool is saturated")
	}
	pool.Stop()
}
