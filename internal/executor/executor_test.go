package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automatosx/internal/ability"
	"automatosx/internal/contextmgr"
	"automatosx/internal/profile"
	"automatosx/internal/provider"
	"automatosx/internal/workspace"
)

type fakeRouter struct {
	resp    *provider.ExecutionResponse
	err     error
	callErr []error // if set, returned in sequence across calls (for retry tests)
	calls   int
}

func (f *fakeRouter) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	f.calls++
	if len(f.callErr) > 0 {
		idx := f.calls - 1
		if idx < len(f.callErr) && f.callErr[idx] != nil {
			return nil, f.callErr[idx]
		}
		return f.resp, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func buildTestCollaborators(t *testing.T) (*profile.Loader, *contextmgr.Manager, *workspace.Manager) {
	t.Helper()
	agentsDir := t.TempDir()
	newTestProfile(t, agentsDir, "writer", "name: writer\nmaxTokens: 100\n")
	loader := profile.NewLoader(agentsDir)

	abilitiesDir := t.TempDir()
	abilities := ability.NewManager(abilitiesDir)

	root := t.TempDir()
	ws := workspace.New(filepath.Join(root, "workspaces"), filepath.Join(root, "PRD"), filepath.Join(root, "tmp"))

	ctxMgr := contextmgr.New(loader, abilities, nil, nil, nil)
	return loader, ctxMgr, ws
}

func TestExecuteRunsThroughRouter(t *testing.T) {
	loader, ctxMgr, ws := buildTestCollaborators(t)
	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "done", FinishReason: provider.FinishReasonStop}}
	exec := New(router, ctxMgr, loader, ws, nil)

	ec, err := ctxMgr.CreateContext(context.Background(), "writer", "write a poem", contextmgr.Options{})
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), ec, Options{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 1, router.calls)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	loader, ctxMgr, ws := buildTestCollaborators(t)
	router := &fakeRouter{
		resp:    &provider.ExecutionResponse{Content: "ok"},
		callErr: []error{errors.New("timeout"), nil},
	}
	exec := New(router, ctxMgr, loader, ws, nil)

	ec, err := ctxMgr.CreateContext(context.Background(), "writer", "task", contextmgr.Options{})
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), ec, Options{Retry: &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, router.calls)
}

func TestExecuteTimesOut(t *testing.T) {
	loader, ctxMgr, ws := buildTestCollaborators(t)
	router := &slowRouter{delay: 50 * time.Millisecond}
	exec := New(router, ctxMgr, loader, ws, nil)

	ec, err := ctxMgr.CreateContext(context.Background(), "writer", "task", contextmgr.Options{})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), ec, Options{Timeout: 5 * time.Millisecond})
	require.Error(t, err)
}

type slowRouter struct{ delay time.Duration }

func (s *slowRouter) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	select {
	case <-time.After(s.delay):
		return &provider.ExecutionResponse{Content: "late"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestDelegateToAgentReturnsFailureResultOnMaxDepth(t *testing.T) {
	agentsDir := t.TempDir()
	newTestProfile(t, agentsDir, "writer", "name: writer\norchestration:\n  maxDelegationDepth: 1\n")
	loader := profile.NewLoader(agentsDir)
	abilities := ability.NewManager(t.TempDir())
	ctxMgr := contextmgr.New(loader, abilities, nil, nil, nil)
	root := t.TempDir()
	ws := workspace.New(filepath.Join(root, "workspaces"), filepath.Join(root, "PRD"), filepath.Join(root, "tmp"))

	router := &fakeRouter{resp: &provider.ExecutionResponse{Content: "ok"}}
	exec := New(router, ctxMgr, loader, ws, nil)

	req := DelegationRequest{FromAgent: "writer", ToAgent: "writer", DelegationChain: []string{"writer"}}
	result := exec.DelegateToAgent(context.Background(), req, Options{})
	assert.Equal(t, DelegationFailure, result.Status)
	assert.NotNil(t, result.Response)
}
