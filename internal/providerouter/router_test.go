package providerouter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automatosx/internal/apperr"
	"automatosx/internal/provider"
)

type fakeProvider struct {
	name      string
	priority  int
	available bool
	execErr   error
	execCount int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Priority() int    { return f.priority }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	f.execCount++
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &provider.ExecutionResponse{Content: "ok", Provider: f.name, FinishReason: provider.FinishReasonStop}, nil
}

func TestExecuteNoProvidersConfigured(t *testing.T) {
	r := New(Config{}, nil)
	defer r.Destroy()

	_, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoProvidersConfigured, apperr.CodeOf(err))
}

func TestExecutePrefersLowerPriority(t *testing.T) {
	low := &fakeProvider{name: "low", priority: 1, available: true}
	high := &fakeProvider{name: "high", priority: 0, available: true}
	r := New(Config{FallbackEnabled: true}, []provider.Provider{low, high})
	defer r.Destroy()

	resp, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "high", resp.Provider)
	assert.Equal(t, 1, high.execCount)
	assert.Equal(t, 0, low.execCount)
}

func TestExecuteFallsBackOnFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: 0, available: true, execErr: errors.New("boom")}
	backup := &fakeProvider{name: "backup", priority: 1, available: true}
	r := New(Config{FallbackEnabled: true}, []provider.Provider{primary, backup})
	defer r.Destroy()

	resp, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Provider)
	assert.True(t, r.underPenalty("primary"))
}

func TestExecutePropagatesWithoutFallback(t *testing.T) {
	primary := &fakeProvider{name: "primary", priority: 0, available: true, execErr: errors.New("boom")}
	backup := &fakeProvider{name: "backup", priority: 1, available: true}
	r := New(Config{FallbackEnabled: false}, []provider.Provider{primary, backup})
	defer r.Destroy()

	_, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 0, backup.execCount)
}

func TestExecuteAllUnavailableReturnsNoProvidersAvailable(t *testing.T) {
	p := &fakeProvider{name: "p", priority: 0, available: false}
	r := New(Config{FallbackEnabled: true}, []provider.Provider{p})
	defer r.Destroy()

	_, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoProvidersAvailable, apperr.CodeOf(err))
}

func TestExecuteAllFailedReturnsAllProvidersFailed(t *testing.T) {
	a := &fakeProvider{name: "a", priority: 0, available: true, execErr: errors.New("a failed")}
	b := &fakeProvider{name: "b", priority: 1, available: true, execErr: errors.New("b failed")}
	r := New(Config{FallbackEnabled: true}, []provider.Provider{a, b})
	defer r.Destroy()

	_, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAllProvidersFailed, apperr.CodeOf(err))
}

func TestPenalizedProviderSkippedUntilPenaltyCleared(t *testing.T) {
	p := &fakeProvider{name: "p", priority: 0, available: true}
	r := New(Config{FallbackEnabled: true}, []provider.Provider{p})
	defer r.Destroy()
	r.penalize("p")
	assert.True(t, r.underPenalty("p"))

	// Probing filters it out while penalized.
	_, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	assert.Error(t, err)

	r.clearPenalty("p")
	resp, err := r.Execute(context.Background(), provider.ExecutionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "p", resp.Provider)
}
