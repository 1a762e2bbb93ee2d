// Package executor runs a single agent end-to-end through the Provider
// Router, applies retry/timeout, parses delegation directives from
// successful responses, and dispatches delegations sequentially or through
// a dependency-aware parallel scheduler.
package executor

import (
	"time"

	"automatosx/internal/provider"
)

// RetryConfig mirrors SPEC_FULL.md §4.2 retry options.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []string
}

// StreamCallbacks are invoked by Executor.Execute when both the caller sets
// Options.Streaming and ec.Provider implements provider.StreamingProvider
// with Capabilities().Streaming true; otherwise Execute silently falls back
// to the buffered path and these callbacks are never invoked.
type StreamCallbacks struct {
	OnToken    func(token string)
	OnProgress func(message string)
}

// Options configures a single execute/executeDelegations call.
type Options struct {
	Verbose                      bool
	ShowProgress                 bool
	Retry                        *RetryConfig
	Timeout                      time.Duration
	ParallelEnabled              bool
	MaxConcurrentDelegations     int
	ContinueDelegationsOnFailure bool
	Streaming                    *StreamCallbacks
}

// DelegationStatus is the outcome of a single delegation.
type DelegationStatus string

const (
	DelegationSuccess DelegationStatus = "success"
	DelegationFailure DelegationStatus = "failure"
	DelegationSkipped DelegationStatus = "skipped"
)

// DelegationRequest is one parsed (or explicitly constructed) delegation.
type DelegationRequest struct {
	FromAgent       string
	ToAgent         string
	Task            string
	SessionID       string
	DelegationChain []string
	SharedData      map[string]any
}

// DelegationOutputs carries side-effect artifacts from a delegation run.
type DelegationOutputs struct {
	Files         []string
	MemoryIDs     []int64
	WorkspacePath string
}

// DelegationResult always contains every structural field, even on failure
// (a failed delegation carries a synthesized error response rather than a
// missing one).
type DelegationResult struct {
	DelegationID string
	FromAgent    string
	ToAgent      string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Status       DelegationStatus
	Response     *provider.ExecutionResponse
	Outputs      DelegationOutputs
}
