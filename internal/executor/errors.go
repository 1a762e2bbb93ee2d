package executor

import "automatosx/internal/apperr"

// ErrExecutionTimeout is raised when a timeout races the execution and
// expires first.
func ErrExecutionTimeout(agent string) error {
	return apperr.New(apperr.CodeExecutionTimeout, "execution of "+agent+" timed out")
}

// ErrExecutionCancelled is raised when the caller's context is cancelled
// mid-execution.
func ErrExecutionCancelled(agent string) error {
	return apperr.New(apperr.CodeExecutionCancelled, "execution of "+agent+" was cancelled")
}

// ErrRetryExhausted wraps the last error after all retry attempts fail.
func ErrRetryExhausted(agent string, cause error) error {
	return apperr.Wrap(apperr.CodeRetryExhausted, "retries exhausted executing "+agent, cause)
}

// ErrDelegationNotConfigured is raised when parallel dispatch is requested
// without all required collaborators present.
func ErrDelegationNotConfigured() error {
	return apperr.New(apperr.CodeDelegationNotConfigured, "ContextManager, ProfileLoader, and WorkspaceManager must all be configured for parallel delegation")
}
