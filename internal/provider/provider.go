// Package provider defines the CLI agent provider interface: a process the
// Provider Router can invoke, probe for availability, and penalize on
// failure.
package provider

import "context"

// Provider is a CLI-backed agent runtime (claude-code, gemini-cli, etc).
type Provider interface {
	// Name returns the provider's configured name, unique within a router.
	Name() string

	// Priority returns the provider's configured selection priority; lower
	// values are tried first.
	Priority() int

	// IsAvailable reports whether the provider's backing command can accept
	// work right now. Implementations should make this cheap and safe to
	// call frequently (the router's health loop polls it on an interval).
	IsAvailable(ctx context.Context) bool

	// Execute runs req against the provider's CLI and returns its response.
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResponse, error)
}

// Capabilities advertises optional features a Provider supports beyond the
// base Execute call, per Design Note 6: "express capability detection via a
// runtime capabilities record on the provider handle."
type Capabilities struct {
	Streaming bool
}

// StreamingProvider is implemented by providers that can emit tokens as they
// arrive rather than only a finished response. The Executor selects this
// path only when the caller asked for streaming and Capabilities().Streaming
// is true; otherwise it falls back to the base Execute call.
type StreamingProvider interface {
	Provider

	// Capabilities reports which optional features this provider instance
	// supports right now.
	Capabilities() Capabilities

	// ExecuteStreaming runs req, invoking onToken as output becomes
	// available and onProgress for coarser-grained status updates, and
	// still returns the complete ExecutionResponse once finished.
	ExecuteStreaming(ctx context.Context, req ExecutionRequest, onToken func(token string), onProgress func(message string)) (*ExecutionResponse, error)
}

// ExecutionRequest is the input to a single provider invocation.
type ExecutionRequest struct {
	Prompt      string
	SystemPrompt string
	Model       string
	Temperature float64
	MaxTokens   int
	TimeoutMs   int
	WorkspaceDir string
}

// FinishReason classifies why an execution ended.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonError     FinishReason = "error"
	FinishReasonCancelled FinishReason = "cancelled"
)

// TokensUsed mirrors the reference stack's Usage type, renamed to the
// spec's vocabulary.
type TokensUsed struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// ExecutionResponse is a provider's answer to an ExecutionRequest.
type ExecutionResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Tokens       TokensUsed   `json:"tokens"`
	Provider     string       `json:"provider"`
	DurationMs   int64        `json:"duration_ms"`
}
