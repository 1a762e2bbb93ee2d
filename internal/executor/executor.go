package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"automatosx/internal/contextmgr"
	"automatosx/internal/profile"
	"automatosx/internal/provider"
	"automatosx/internal/workspace"
	"automatosx/pkg/logger"
)

// ProviderExecutor is the subset of providerouter.Router the executor
// depends on.
type ProviderExecutor interface {
	Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error)
}

// Executor runs agents end-to-end: prompt assembly, provider execution with
// retry/timeout, delegation directive parsing, and recursive dispatch.
type Executor struct {
	router    ProviderExecutor
	contexts  *contextmgr.Manager
	profiles  *profile.Loader
	workspace *workspace.Manager
	sessions  SessionJoiner // optional
}

// New creates an Executor over its already-constructed collaborators.
// sessions may be nil, in which case delegations join no session. ws may be
// nil; parallel dispatch then fails with DelegationNotConfigured.
func New(router ProviderExecutor, contexts *contextmgr.Manager, profiles *profile.Loader, ws *workspace.Manager, sessions SessionJoiner) *Executor {
	return &Executor{router: router, contexts: contexts, profiles: profiles, workspace: ws, sessions: sessions}
}

func (e *Executor) MaxDelegationDepthOf(agentName string) (int, error) {
	p, err := e.profiles.Load(agentName)
	if err != nil {
		return 0, err
	}
	return p.MaxDelegationDepth(), nil
}

func (e *Executor) DependenciesOf(agentName string) ([]string, error) {
	p, err := e.profiles.Load(agentName)
	if err != nil {
		return nil, err
	}
	return p.Dependencies, nil
}

// Execute runs a single agent end-to-end: assembles the prompt, executes it
// through the router with retry and timeout, then returns the response
// unchanged (delegation scanning is the caller's responsibility via
// ExecuteDelegations, since a bare Execute call has no delegation context).
func (e *Executor) Execute(ctx context.Context, ec *contextmgr.ExecutionContext, opts Options) (*provider.ExecutionResponse, error) {
	prompt := AssemblePrompt(ec)

	req := provider.ExecutionRequest{
		Prompt:       prompt,
		SystemPrompt: ec.Profile.SystemPrompt,
		Model:        ec.Profile.Model,
		Temperature:  ec.Profile.Temperature,
		MaxTokens:    ec.Profile.MaxTokens,
	}

	// Streaming is only ever attempted against the provider instance this
	// context already selected (Design Note 6's "capabilities record on the
	// provider handle"), and only when the provider actually advertises it;
	// otherwise execution falls through to the buffered router path below,
	// retry and timeout included.
	if opts.Streaming != nil {
		if sp, ok := ec.Provider.(provider.StreamingProvider); ok && sp.Capabilities().Streaming {
			return sp.ExecuteStreaming(ctx, req, opts.Streaming.OnToken, opts.Streaming.OnProgress)
		}
	}

	run := func(ctx context.Context) (*provider.ExecutionResponse, error) {
		return e.router.Execute(ctx, req)
	}
	if opts.Retry != nil {
		run = e.withRetry(*opts.Retry, req)
	}

	if opts.Timeout <= 0 {
		return run(ctx)
	}
	return e.withTimeout(ctx, opts.Timeout, ec.Profile.Name, run)
}

func (e *Executor) withRetry(cfg RetryConfig, req provider.ExecutionRequest) func(ctx context.Context) (*provider.ExecutionResponse, error) {
	policy := resolvePolicy(cfg)
	return func(ctx context.Context) (*provider.ExecutionResponse, error) {
		var lastErr error
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			resp, err := e.router.Execute(ctx, req)
			if err == nil {
				return resp, nil
			}
			lastErr = err
			if !shouldRetry(policy, attempt, err) {
				return nil, err
			}
			if attempt == policy.MaxAttempts {
				break
			}
			delay := nextDelay(policy, attempt)
			logger.Get().Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying execution")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		return nil, ErrRetryExhausted(req.Model, lastErr)
	}
}

func (e *Executor) withTimeout(ctx context.Context, timeout time.Duration, agentName string, run func(context.Context) (*provider.ExecutionResponse, error)) (*provider.ExecutionResponse, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *provider.ExecutionResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := run(tctx)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-tctx.Done():
		return nil, ErrExecutionTimeout(agentName)
	}
}

// DelegateToAgent runs one named sub-agent, used internally by delegation
// dispatch and exposed for direct callers.
func (e *Executor) DelegateToAgent(ctx context.Context, req DelegationRequest, opts Options) *DelegationResult {
	start := time.Now()
	result := &DelegationResult{
		DelegationID: uuid.NewString(),
		FromAgent:    req.FromAgent,
		ToAgent:      req.ToAgent,
		StartTime:    start,
	}

	sessionID, err := checkDelegationSafety(e, e.sessions, req)
	if err != nil {
		return e.failResult(result, err)
	}
	req.SessionID = sessionID

	ec, err := e.contexts.CreateContext(ctx, req.ToAgent, req.Task, contextmgr.Options{
		SessionID:       req.SessionID,
		DelegationChain: nextChain(req.DelegationChain, req.FromAgent),
		SharedData:      req.SharedData,
	})
	if err != nil {
		return e.failResult(result, err)
	}

	resp, err := e.Execute(ctx, ec, opts)
	if err != nil {
		return e.failResult(result, err)
	}

	var workspacePath string
	if e.workspace != nil {
		if b, werr := e.workspace.Workspace(req.ToAgent); werr == nil {
			workspacePath = b.Path
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Status = DelegationSuccess
	result.Response = resp
	result.Outputs = DelegationOutputs{WorkspacePath: workspacePath}
	return result
}

func (e *Executor) failResult(result *DelegationResult, cause error) *DelegationResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Status = DelegationFailure
	result.Response = &provider.ExecutionResponse{
		Content:      cause.Error(),
		FinishReason: provider.FinishReasonError,
	}
	result.Outputs = DelegationOutputs{}
	return result
}

// ExecuteDelegations dispatches a batch of delegations either sequentially
// or, when opts.ParallelEnabled and more than one entry is requested,
// through the dependency-aware parallel scheduler.
func (e *Executor) ExecuteDelegations(ctx context.Context, requests []DelegationRequest, opts Options) ([]*DelegationResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	if !opts.ParallelEnabled || len(requests) == 1 {
		return e.executeSequential(ctx, requests, opts), nil
	}

	if e.contexts == nil || e.profiles == nil || e.workspace == nil {
		return nil, ErrDelegationNotConfigured()
	}

	run := func(ctx context.Context, req DelegationRequest) *DelegationResult {
		return e.DelegateToAgent(ctx, req, opts)
	}
	return scheduleParallel(ctx, e, requests, opts.MaxConcurrentDelegations, opts.ContinueDelegationsOnFailure, run)
}

func (e *Executor) executeSequential(ctx context.Context, requests []DelegationRequest, opts Options) []*DelegationResult {
	results := make([]*DelegationResult, 0, len(requests))
	failed := false
	for _, req := range requests {
		if failed && !opts.ContinueDelegationsOnFailure {
			results = append(results, &DelegationResult{FromAgent: req.FromAgent, ToAgent: req.ToAgent, Status: DelegationSkipped})
			continue
		}
		r := e.DelegateToAgent(ctx, req, opts)
		if r.Status == DelegationFailure {
			failed = true
		}
		results = append(results, r)
	}
	return results
}
