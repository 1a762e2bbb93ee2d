// Package stage orchestrates an agent's ordered stage pipeline: per-stage
// retry/timeout, checkpoint persistence after every completed or failed
// stage, and resume from the last completed stage. Grounded in the
// reference stack's PDA stage-stack engine
// (internal/runner/delegate/cfg/engine.go), generalized from an LLM-routed
// push-down automaton to a strictly sequential stage DAG with file-backed
// checkpoints instead of session-metadata-embedded ones.
package stage

import (
	"time"

	"automatosx/internal/provider"
)

// Status is a single stage's execution state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped"
)

// StageResult records one stage's outcome within a run.
type StageResult struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Index       int                 `json:"index"`
	Status      Status              `json:"status"`
	Retries     int                 `json:"retries"`
	Output      string              `json:"output,omitempty"`
	Tokens      provider.TokensUsed `json:"tokens,omitempty"`
	DurationMs  int64               `json:"durationMs,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// CheckpointData is the crash-safe JSON snapshot of a stage run. SchemaVersion
// is gated with Masterminds/semver/v3 so future incompatible layouts can be
// rejected by constraint rather than bare string comparison.
type CheckpointData struct {
	SchemaVersion           string         `json:"schemaVersion"`
	Checksum                string         `json:"checksum"`
	RunID                   string         `json:"runId"`
	Agent                   string         `json:"agent"`
	Task                    string         `json:"task"`
	Mode                    string         `json:"mode"`
	Stages                  []StageResult  `json:"stages"`
	LastCompletedStageIndex int            `json:"lastCompletedStageIndex"`
	PreviousOutputs         []string       `json:"previousOutputs"`
	SharedData              map[string]any `json:"sharedData,omitempty"`
	CreatedAt               time.Time      `json:"createdAt"`
	UpdatedAt               time.Time      `json:"updatedAt"`
}

// schemaVersion is the CheckpointData layout this controller writes and the
// floor of what it accepts on resume (spec's "v5.3+ stage runs").
const schemaVersion = "5.3.0"

// schemaConstraint is the semver constraint a loaded checkpoint's
// SchemaVersion must satisfy to be resumable.
const schemaConstraint = ">= 5.3.0"

// Config governs defaults applied when a stage omits its own timeout/retry
// count, and where checkpoints land.
type Config struct {
	CheckpointDir       string
	DefaultStageTimeout time.Duration
	DefaultMaxRetries   int
}
