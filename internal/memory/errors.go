package memory

import (
	"fmt"

	"automatosx/internal/apperr"
)

func errDatabaseError(op string, cause error) error {
	return apperr.Wrap(apperr.CodeDatabaseError, "memory: "+op, cause)
}

func errQueryError(op string, cause error) error {
	return apperr.Wrap(apperr.CodeQueryError, "memory: "+op, cause)
}

func errEntryNotFound(id int64) error {
	return apperr.New(apperr.CodeEntryNotFound, fmt.Sprintf("memory entry %d not found", id))
}

func errMemoryLimit() error {
	return apperr.New(apperr.CodeMemoryLimit, "entry count still at or above maxEntries after cleanup").
		WithSuggestion("raise maxEntries or tighten the cleanup thresholds")
}

func errConfig(message string) error {
	return apperr.New(apperr.CodeConfigError, message)
}

// ValidateConfig checks the invariants required before a Manager is opened.
func ValidateConfig(cfg Config) error {
	if cfg.TriggerThreshold < 0.5 || cfg.TriggerThreshold > 1.0 {
		return errConfig("triggerThreshold must be in [0.5, 1.0]")
	}
	if cfg.TargetThreshold < 0.1 || cfg.TargetThreshold > 0.9 {
		return errConfig("targetThreshold must be in [0.1, 0.9]")
	}
	if cfg.TargetThreshold >= cfg.TriggerThreshold {
		return errConfig("targetThreshold must be less than triggerThreshold")
	}
	if cfg.MinCleanupCount < 1 {
		return errConfig("minCleanupCount must be at least 1")
	}
	if cfg.MaxCleanupCount < cfg.MinCleanupCount {
		return errConfig("maxCleanupCount must be >= minCleanupCount")
	}
	if cfg.RetentionDays < 1 {
		return errConfig("retentionDays must be at least 1")
	}
	return nil
}
