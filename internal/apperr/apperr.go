// Package apperr defines the machine-readable error taxonomy shared by every
// subsystem of the orchestration core (router, executor, memory, session,
// stage). Each sentinel Code is stable across releases; callers match on it
// with errors.As rather than string comparison.
package apperr

import "fmt"

// Code is a machine-readable error category.
type Code string

const (
	// Provider / router
	CodeNoProvidersConfigured Code = "NO_PROVIDERS_CONFIGURED"
	CodeNoProvidersAvailable  Code = "NO_PROVIDERS_AVAILABLE"
	CodeAllProvidersFailed    Code = "ALL_PROVIDERS_FAILED"
	CodeProviderExecution     Code = "PROVIDER_EXECUTION_ERROR"
	CodeProviderHealth        Code = "PROVIDER_HEALTH_ERROR"

	// Execution
	CodeExecutionTimeout   Code = "EXECUTION_TIMEOUT"
	CodeExecutionCancelled Code = "EXECUTION_CANCELLED"
	CodeRetryExhausted     Code = "RETRY_EXHAUSTED"

	// Delegation
	CodeDelegationNotConfigured Code = "DELEGATION_NOT_CONFIGURED"
	CodeDelegationUnauthorized Code = "DELEGATION_UNAUTHORIZED"
	CodeDelegationCycle        Code = "DELEGATION_CYCLE"
	CodeMaxDepthExceeded       Code = "MAX_DEPTH_EXCEEDED"
	CodeDelegationExecutionFailed Code = "DELEGATION_EXECUTION_FAILED"
	CodeDependencyCycle        Code = "DEPENDENCY_CYCLE"

	// Session
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeMetadataTooLarge Code = "METADATA_TOO_LARGE"
	CodeCreationFailed  Code = "CREATION_FAILED"

	// Memory
	CodeDatabaseError Code = "DATABASE_ERROR"
	CodeQueryError    Code = "QUERY_ERROR"
	CodeEntryNotFound Code = "ENTRY_NOT_FOUND"
	CodeMemoryLimit   Code = "MEMORY_LIMIT"
	CodeConfigError   Code = "CONFIG_ERROR"

	// Stage
	CodeNoStages          Code = "NO_STAGES"
	CodeDuplicateStageName Code = "DUPLICATE_STAGE_NAME"
	CodeCheckpointNotFound Code = "CHECKPOINT_NOT_FOUND"
	CodeCheckpointCorrupt Code = "CHECKPOINT_CORRUPT"

	// Input validation
	CodeInvalidAgentName   Code = "INVALID_AGENT_NAME"
	CodeInvalidAbilityName Code = "INVALID_ABILITY_NAME"
	CodeInvalidSessionID   Code = "INVALID_SESSION_ID"
)

// Error is the concrete error type carried by every taxonomy code. It wraps
// an optional cause and implements Unwrap so errors.Is/errors.As work against
// both the sentinel Code and the wrapped cause.
type Error struct {
	Code       Code
	Message    string
	Suggestion string // optional actionable suggestion surfaced to --verbose output
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.New(CodeX, "")) style matching on Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithSuggestion attaches an actionable suggestion and returns the receiver.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, else "".
func CodeOf(err error) Code {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code
	}
	return ""
}

// asError is a small local helper mirroring errors.As without importing
// errors here twice across call sites that already import it themselves.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
