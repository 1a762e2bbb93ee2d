package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeps struct{ deps map[string][]string }

func (f *fakeDeps) DependenciesOf(name string) ([]string, error) { return f.deps[name], nil }

func TestTopologicalLevelsOrdersByDependency(t *testing.T) {
	deps := &fakeDeps{deps: map[string][]string{
		"b": {"a"},
		"c": {"a", "b"},
		"a": {},
	}}
	requests := []DelegationRequest{{ToAgent: "a"}, {ToAgent: "b"}, {ToAgent: "c"}}

	levels, err := topologicalLevels(deps, requests)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, "a", levels[0][0].ToAgent)
	assert.Equal(t, "b", levels[1][0].ToAgent)
	assert.Equal(t, "c", levels[2][0].ToAgent)
}

func TestTopologicalLevelsDetectsCycle(t *testing.T) {
	deps := &fakeDeps{deps: map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}}
	requests := []DelegationRequest{{ToAgent: "a"}, {ToAgent: "b"}}

	_, err := topologicalLevels(deps, requests)
	assert.Error(t, err)
}

func TestScheduleParallelRunsIndependentLevelConcurrently(t *testing.T) {
	deps := &fakeDeps{deps: map[string][]string{"a": {}, "b": {}}}
	requests := []DelegationRequest{{ToAgent: "a"}, {ToAgent: "b"}}

	var concurrent int32
	var maxSeen int32
	var mu sync.Mutex
	var started sync.WaitGroup
	started.Add(2)
	run := func(ctx context.Context, req DelegationRequest) *DelegationResult {
		n := atomic.AddInt32(&concurrent, 1)
		mu.Lock()
		if n > maxSeen {
			maxSeen = n
		}
		mu.Unlock()
		// Both delegations must be in flight at once for either to finish.
		started.Done()
		started.Wait()
		atomic.AddInt32(&concurrent, -1)
		return &DelegationResult{ToAgent: req.ToAgent, Status: DelegationSuccess}
	}

	results, err := scheduleParallel(context.Background(), deps, requests, 4, false, run)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), maxSeen)
}

func TestScheduleParallelSkipsLaterLevelsOnFailureWithoutContinue(t *testing.T) {
	deps := &fakeDeps{deps: map[string][]string{"a": {}, "b": {"a"}}}
	requests := []DelegationRequest{{ToAgent: "a"}, {ToAgent: "b"}}

	run := func(ctx context.Context, req DelegationRequest) *DelegationResult {
		if req.ToAgent == "a" {
			return &DelegationResult{ToAgent: "a", Status: DelegationFailure}
		}
		return &DelegationResult{ToAgent: "b", Status: DelegationSuccess}
	}

	results, err := scheduleParallel(context.Background(), deps, requests, 4, false, run)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, DelegationFailure, results[0].Status)
	assert.Equal(t, DelegationSkipped, results[1].Status)
}
