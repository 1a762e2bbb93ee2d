package executor

import (
	"math"
	"strings"
	"time"
)

// defaultRetryablePatterns are matched case-insensitively against the
// concatenation of an error's message and code, per SPEC_FULL.md §4.2.
var defaultRetryablePatterns = []string{
	"econnrefused", "etimedout", "enotfound", "rate_limit", "overloaded", "timeout",
}

// nonRetryableError marks an error as exempt from the default
// substring-matching retry policy, mirroring the reference stack's
// internal/cron/retry.go NonRetryable wrapper.
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }
func (e *nonRetryableError) Retryable() bool { return false }

// NonRetryable wraps err so shouldRetry returns false for it regardless of
// its message.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string   { return e.err.Error() }
func (e *retryableError) Unwrap() error   { return e.err }
func (e *retryableError) Retryable() bool { return true }

// Retryable wraps err so shouldRetry returns true for it while attempts
// remain, bypassing substring matching.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type explicitRetryable interface {
	error
	Retryable() bool
}

// codedError lets callers attach a machine code alongside a message for
// substring-based retry matching (e.g. provider.Error).
type codedError interface {
	error
	ErrCode() string
}

// resolvePolicy fills in the reference stack's documented defaults for any
// zero fields.
func resolvePolicy(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	if len(cfg.RetryableErrors) == 0 {
		cfg.RetryableErrors = defaultRetryablePatterns
	}
	return cfg
}

// shouldRetry reports whether attempt (1-based, the attempt that just
// failed) should be retried given err.
func shouldRetry(cfg RetryConfig, attempt int, err error) bool {
	if attempt >= cfg.MaxAttempts {
		return false
	}

	var explicit explicitRetryable
	if asExplicit(err, &explicit) {
		return explicit.Retryable()
	}

	haystack := strings.ToLower(err.Error())
	if coded, ok := err.(codedError); ok {
		haystack += " " + strings.ToLower(coded.ErrCode())
	}
	for _, pattern := range cfg.RetryableErrors {
		if strings.Contains(haystack, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func asExplicit(err error, target *explicitRetryable) bool {
	for err != nil {
		if e, ok := err.(explicitRetryable); ok {
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

// nextDelay computes delay = min(initialDelay * backoffFactor^(attempt-1), maxDelay),
// where attempt is the 1-based attempt that just failed; the result is the
// wait before the next attempt.
func nextDelay(cfg RetryConfig, attempt int) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}
