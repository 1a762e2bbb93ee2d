package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetryMatchesDefaultPatterns(t *testing.T) {
	cfg := resolvePolicy(RetryConfig{MaxAttempts: 3})
	assert.True(t, shouldRetry(cfg, 1, errors.New("connection refused: ECONNREFUSED")))
	assert.True(t, shouldRetry(cfg, 1, errors.New("request timeout exceeded")))
	assert.False(t, shouldRetry(cfg, 1, errors.New("invalid api key")))
}

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	cfg := resolvePolicy(RetryConfig{MaxAttempts: 2})
	assert.False(t, shouldRetry(cfg, 2, errors.New("timeout")))
}

func TestShouldRetryHonorsExplicitWrappers(t *testing.T) {
	cfg := resolvePolicy(RetryConfig{MaxAttempts: 3})
	assert.False(t, shouldRetry(cfg, 1, NonRetryable(errors.New("auth failed"))))
	assert.True(t, shouldRetry(cfg, 1, Retryable(errors.New("some odd error"))))
}

func TestNextDelayExponentialBackoff(t *testing.T) {
	cfg := resolvePolicy(RetryConfig{
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		MaxAttempts:   5,
	})
	assert.Equal(t, time.Second, nextDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, nextDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, nextDelay(cfg, 3))
	assert.Equal(t, 8*time.Second, nextDelay(cfg, 4))
	assert.Equal(t, 10*time.Second, nextDelay(cfg, 5)) // capped
}
