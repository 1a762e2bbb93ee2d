package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automatosx/internal/ability"
	"automatosx/internal/contextmgr"
	"automatosx/internal/executor"
	"automatosx/internal/memory"
	"automatosx/internal/profile"
	"automatosx/internal/provider"
	"automatosx/internal/workspace"
)

type fakeRouter struct {
	resp  *provider.ExecutionResponse
	err   error
	calls int
}

func (f *fakeRouter) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func buildController(t *testing.T, router executor.ProviderExecutor, mem *memory.Manager, agentYAML string) (*Controller, *profile.Loader) {
	t.Helper()
	agentsDir := t.TempDir()
	newTestProfile(t, agentsDir, "writer", agentYAML)
	loader := profile.NewLoader(agentsDir)
	abilities := ability.NewManager(t.TempDir())
	root := t.TempDir()
	ws := workspace.New(filepath.Join(root, "workspaces"), filepath.Join(root, "PRD"), filepath.Join(root, "tmp"))

	ctxMgr := contextmgr.New(loader, abilities, nil, nil, nil)
	exec := executor.New(router, ctxMgr, loader, ws, nil)

	cfg := Config{CheckpointDir: filepath.Join(root, "checkpoints")}
	return New(cfg, ctxMgr, exec, mem), loader
}

func loadWriter(t *testing.T, loader *profile.Loader) *profile.AgentProfile {
	t.Helper()
	p, err := loader.Load("writer")
	require.NoError(t, err)
	return p
}

const twoStageYAML = `
name: writer
stages:
  - name: plan
    description: plan the work
  - name: implement
    description: write the code
`

func TestRunExecutesAllStagesInOrder(t *testing.T) {
	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "stage output"}}
	c, loader := buildController(t, router, nil, twoStageYAML)
	ap := loadWriter(t, loader)

	cp, err := c.Run(context.Background(), "run-1", ap, "build the widget")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.LastCompletedStageIndex)
	assert.Len(t, cp.Stages, 2)
	assert.Equal(t, StatusCompleted, cp.Stages[0].Status)
	assert.Equal(t, StatusCompleted, cp.Stages[1].Status)
	assert.Equal(t, []string{"stage output", "stage output"}, cp.PreviousOutputs)
}

func TestRunRejectsEmptyStages(t *testing.T) {
	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "x"}}
	c, loader := buildController(t, router, nil, "name: writer\n")
	ap := loadWriter(t, loader)

	_, err := c.Run(context.Background(), "run-1", ap, "task")
	assert.Error(t, err)
}

func TestRunStopsOnStageFailureWithoutForcingFinalIndex(t *testing.T) {
	router := &fakeRouter{err: assertError("boom")}
	c, loader := buildController(t, router, nil, twoStageYAML)
	c.cfg.DefaultMaxRetries = 0
	ap := loadWriter(t, loader)

	cp, err := c.Run(context.Background(), "run-2", ap, "task")
	require.Error(t, err)
	assert.Equal(t, -1, cp.LastCompletedStageIndex)
	assert.Equal(t, StatusError, cp.Stages[0].Status)
	assert.Equal(t, StatusQueued, cp.Stages[1].Status)
}

func TestResumeContinuesFromLastCompletedStage(t *testing.T) {
	calls := 0
	router := &countingRouter{fakeRouter: fakeRouter{resp: &provider.ExecutionResponse{Content: "ok"}}, onCall: func() { calls++ }}
	c, loader := buildController(t, router, nil, twoStageYAML)
	c.cfg.DefaultMaxRetries = 0
	ap := loadWriter(t, loader)

	// Simulate a checkpoint where stage 0 already completed.
	cp := &CheckpointData{
		RunID:                   "run-3",
		Agent:                   ap.Name,
		Task:                    "task",
		Mode:                    "stages",
		Stages:                  initialStageResults(ap),
		LastCompletedStageIndex: 0,
	}
	cp.Stages[0].Status = StatusCompleted
	cp.PreviousOutputs = []string{"plan output"}
	require.NoError(t, saveCheckpoint(c.cfg.CheckpointDir, cp))

	resumed, err := c.Resume(context.Background(), "run-3", ap, "task")
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.LastCompletedStageIndex)
	assert.Equal(t, StatusCompleted, resumed.Stages[0].Status)
	assert.Equal(t, StatusCompleted, resumed.Stages[1].Status)
	assert.Equal(t, 1, calls) // only stage 1 (implement) re-ran
}

func TestResumeRejectsMissingCheckpoint(t *testing.T) {
	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "ok"}}
	c, loader := buildController(t, router, nil, twoStageYAML)
	ap := loadWriter(t, loader)

	_, err := c.Resume(context.Background(), "does-not-exist", ap, "task")
	assert.Error(t, err)
}

func TestSaveToMemoryWritesEntryOnStageSuccess(t *testing.T) {
	memCfg := memory.DefaultConfig(filepath.Join(t.TempDir(), "memory.db"))
	m, err := memory.Open(memCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "plan text"}}
	c, loader := buildController(t, router, m, `
name: writer
stages:
  - name: plan
    description: plan the work
    saveToMemory: true
`)
	ap := loadWriter(t, loader)

	_, err = c.Run(context.Background(), "run-4", ap, "task")
	require.NoError(t, err)
	assert.Equal(t, 1, m.EntryCount())
}

// countingRouter wraps fakeRouter to observe how many times Execute is
// called, used to verify resume skips already-completed stages.
type countingRouter struct {
	fakeRouter
	onCall func()
}

func (c *countingRouter) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	c.onCall()
	return c.fakeRouter.Execute(ctx, req)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func assertError(msg string) error { return assertErr(msg) }
