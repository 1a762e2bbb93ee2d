package stage

import (
	"context"
	"fmt"
	"time"

	"automatosx/pkg/logger"

	"automatosx/internal/contextmgr"
	"automatosx/internal/executor"
	"automatosx/internal/memory"
	"automatosx/internal/profile"
	"automatosx/internal/provider"
)

// Controller runs an agent's ordered stages, checkpointing after every
// completed or failed stage and resuming from the highest completed index.
// Grounded in the reference stack's PDAEngine.executeLoop shape (a single
// sequential loop over a call stack), flattened here to a non-recursive
// stage list since the spec's stage DAG is a strict chain, not a push-down
// automaton with agent_ref/route expansion.
type Controller struct {
	cfg      Config
	contexts *contextmgr.Manager
	exec     *executor.Executor
	mem      *memory.Manager // optional; saveToMemory stages warn-and-skip without it
}

// New creates a Controller over its already-constructed collaborators. mem
// may be nil — stages with saveToMemory=true are then skipped with a
// warning rather than failing the run.
func New(cfg Config, contexts *contextmgr.Manager, exec *executor.Executor, mem *memory.Manager) *Controller {
	if cfg.DefaultStageTimeout <= 0 {
		cfg.DefaultStageTimeout = 5 * time.Minute
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = 2
	}
	return &Controller{cfg: cfg, contexts: contexts, exec: exec, mem: mem}
}

func validateStages(ap *profile.AgentProfile) error {
	if len(ap.Stages) == 0 {
		return errNoStages(ap.Name)
	}
	seen := make(map[string]bool, len(ap.Stages))
	for _, s := range ap.Stages {
		if seen[s.Name] {
			return errDuplicateStageName(ap.Name, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Run executes every stage of ap in order, starting fresh.
func (c *Controller) Run(ctx context.Context, runID string, ap *profile.AgentProfile, task string) (*CheckpointData, error) {
	if err := validateStages(ap); err != nil {
		return nil, err
	}

	cp := &CheckpointData{
		RunID:                   runID,
		Agent:                   ap.Name,
		Task:                    task,
		Mode:                    "stages",
		Stages:                  initialStageResults(ap),
		LastCompletedStageIndex: -1,
		CreatedAt:               time.Now().UTC(),
	}
	return c.runFrom(ctx, ap, task, cp, 0)
}

// Resume continues a previously checkpointed run from
// lastCompletedStageIndex+1. The checkpoint's runId must match runID.
func (c *Controller) Resume(ctx context.Context, runID string, ap *profile.AgentProfile, task string) (*CheckpointData, error) {
	if err := validateStages(ap); err != nil {
		return nil, err
	}
	cp, err := loadCheckpoint(c.cfg.CheckpointDir, runID)
	if err != nil {
		return nil, err
	}
	if cp.RunID != runID {
		return nil, errCheckpointCorrupt(runID, fmt.Errorf("checkpoint runId %q does not match requested %q", cp.RunID, runID))
	}
	return c.runFrom(ctx, ap, task, cp, cp.LastCompletedStageIndex+1)
}

func initialStageResults(ap *profile.AgentProfile) []StageResult {
	out := make([]StageResult, len(ap.Stages))
	for i, s := range ap.Stages {
		out[i] = StageResult{Name: s.Name, Description: s.Description, Index: i, Status: StatusQueued}
	}
	return out
}

// runFrom executes ap.Stages[startIndex:] in order against cp, persisting a
// checkpoint after every completed or failed stage. lastCompletedStageIndex
// is only ever raised to the index of a stage that actually completed —
// never forced to len(stages)-1 merely because the loop stopped.
func (c *Controller) runFrom(ctx context.Context, ap *profile.AgentProfile, task string, cp *CheckpointData, startIndex int) (*CheckpointData, error) {
	log := logger.Get()
	previousOutputs := append([]string(nil), cp.PreviousOutputs...)

	for i := startIndex; i < len(ap.Stages); i++ {
		s := ap.Stages[i]
		cp.Stages[i].Status = StatusRunning
		_ = saveCheckpoint(c.cfg.CheckpointDir, cp)

		result, err := c.runStage(ctx, ap.Name, i, s, task, previousOutputs)
		cp.Stages[i] = result

		if err != nil {
			log.Error().Err(err).Str("agent", ap.Name).Str("stage", s.Name).Msg("stage failed")
			_ = saveCheckpoint(c.cfg.CheckpointDir, cp)
			return cp, err
		}

		previousOutputs = append(previousOutputs, result.Output)
		cp.PreviousOutputs = previousOutputs
		cp.LastCompletedStageIndex = i
		_ = saveCheckpoint(c.cfg.CheckpointDir, cp)

		if s.SaveToMemory {
			if c.mem == nil {
				log.Warn().Str("stage", s.Name).Msg("saveToMemory stage skipped: no memory manager configured")
			} else if _, merr := c.mem.Add(ctx, result.Output, memory.Metadata{
				Type:   memory.EntryTask,
				Source: ap.Name,
				Tags:   []string{s.Name},
			}); merr != nil {
				log.Warn().Err(merr).Str("stage", s.Name).Msg("stage memory save failed")
			}
		}
	}

	return cp, nil
}

func (c *Controller) runStage(ctx context.Context, agentName string, index int, s profile.Stage, task string, previousOutputs []string) (StageResult, error) {
	timeout := c.cfg.DefaultStageTimeout
	if s.TimeoutMs != nil {
		timeout = time.Duration(*s.TimeoutMs) * time.Millisecond
	}
	maxRetries := c.cfg.DefaultMaxRetries
	if s.MaxRetries != nil {
		maxRetries = *s.MaxRetries
	}

	start := time.Now()
	stageTask := buildStageTask(s, task)

	var lastErr error
	var resp *provider.ExecutionResponse
	retries := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		retries = attempt
		ec, err := c.contexts.CreateContext(ctx, agentName, stageTask, contextmgr.Options{
			SharedData: map[string]any{"previousStageOutputs": previousOutputs},
		})
		if err != nil {
			lastErr = err
			break
		}

		stageCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		resp, err = c.exec.Execute(stageCtx, ec, executor.Options{})
		if cancel != nil {
			cancel()
		}
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if attempt < maxRetries {
			logger.Get().Warn().Err(err).Str("stage", s.Name).Int("attempt", attempt+1).Msg("retrying stage")
		}
	}

	result := StageResult{
		Name:        s.Name,
		Description: s.Description,
		Index:       index,
		Retries:     retries,
		DurationMs:  time.Since(start).Milliseconds(),
	}

	if lastErr != nil {
		result.Status = StatusError
		result.Error = lastErr.Error()
		return result, lastErr
	}

	result.Status = StatusCompleted
	result.Output = resp.Content
	result.Tokens = resp.Tokens
	return result, nil
}
