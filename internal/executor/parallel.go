package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"automatosx/internal/apperr"
)

// DependencyLookup resolves an agent's declared dependencies[] (other agent
// names), used only to build the in-batch dependency DAG.
type DependencyLookup interface {
	DependenciesOf(agentName string) ([]string, error)
}

// defaultMaxConcurrentDelegations is used when Options.MaxConcurrentDelegations
// is unset.
const defaultMaxConcurrentDelegations = 4

// runDelegationFn executes a single delegation and returns its result (never
// an error — failures are captured inside DelegationResult per the spec).
type runDelegationFn func(ctx context.Context, req DelegationRequest) *DelegationResult

// scheduleParallel computes topological levels over the in-batch dependency
// DAG and dispatches each level concurrently (bounded by maxConcurrent),
// grounded in the reference stack's internal/scheduler/run_queue.go
// per-key-queue concurrency pattern, generalized from "per-session FIFO" to
// "per-dependency-level batch".
func scheduleParallel(ctx context.Context, deps DependencyLookup, requests []DelegationRequest, maxConcurrent int, continueOnFailure bool, run runDelegationFn) ([]*DelegationResult, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentDelegations
	}

	levels, err := topologicalLevels(deps, requests)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*DelegationResult, len(requests))
	failed := false

	for _, level := range levels {
		if failed && !continueOnFailure {
			for _, req := range level {
				results[req.ToAgent] = &DelegationResult{
					FromAgent: req.FromAgent,
					ToAgent:   req.ToAgent,
					Status:    DelegationSkipped,
				}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrent)

		levelResults := make([]*DelegationResult, len(level))
		for i, req := range level {
			i, req := i, req
			g.Go(func() error {
				if failed && !continueOnFailure {
					levelResults[i] = &DelegationResult{FromAgent: req.FromAgent, ToAgent: req.ToAgent, Status: DelegationSkipped}
					return nil
				}
				levelResults[i] = run(gctx, req)
				return nil
			})
		}
		_ = g.Wait()

		for i, req := range level {
			results[req.ToAgent] = levelResults[i]
			if levelResults[i].Status == DelegationFailure {
				failed = true
			}
		}
	}

	ordered := make([]*DelegationResult, 0, len(requests))
	for _, req := range requests {
		if r, ok := results[req.ToAgent]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// topologicalLevels groups requests into dependency levels: level 0 has no
// in-batch dependencies; each subsequent level depends only on earlier
// levels. Cycles raise DependencyCycle.
func topologicalLevels(deps DependencyLookup, requests []DelegationRequest) ([][]DelegationRequest, error) {
	inBatch := make(map[string]bool, len(requests))
	for _, r := range requests {
		inBatch[r.ToAgent] = true
	}

	depsOf := make(map[string][]string, len(requests))
	for _, r := range requests {
		all, err := deps.DependenciesOf(r.ToAgent)
		if err != nil {
			return nil, err
		}
		var filtered []string
		for _, d := range all {
			if inBatch[d] {
				filtered = append(filtered, d)
			}
		}
		depsOf[r.ToAgent] = filtered
	}

	remaining := make(map[string]DelegationRequest, len(requests))
	for _, r := range requests {
		remaining[r.ToAgent] = r
	}

	var levels [][]DelegationRequest
	resolved := make(map[string]bool, len(requests))

	for len(remaining) > 0 {
		var level []DelegationRequest
		for name, req := range remaining {
			ready := true
			for _, d := range depsOf[name] {
				if !resolved[d] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, req)
			}
		}
		if len(level) == 0 {
			return nil, apperr.New(apperr.CodeDependencyCycle, fmt.Sprintf("dependency cycle detected among: %v", remainingNames(remaining)))
		}
		for _, req := range level {
			resolved[req.ToAgent] = true
			delete(remaining, req.ToAgent)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func remainingNames(remaining map[string]DelegationRequest) []string {
	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	return names
}
