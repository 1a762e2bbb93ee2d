package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of the decoded automatosx.config.json / .yaml file.
// Every field here is load-bearing for one of SPEC_FULL.md's components; the
// external driver decodes this with viper and hands it to the core
// constructors (providerouter.New, memory.Open, ...) — the core never touches
// viper directly.
type Config struct {
	Providers map[string]ProviderEntry `mapstructure:"providers" yaml:"providers"`
	Memory    MemoryConfig             `mapstructure:"memory" yaml:"memory"`
	Workspace WorkspaceConfig          `mapstructure:"workspace" yaml:"workspace"`
	Logging   LogConfig                `mapstructure:"logging" yaml:"logging"`
	Execution ExecutionConfig          `mapstructure:"execution" yaml:"execution"`
	Session   SessionConfig            `mapstructure:"session" yaml:"session"`
}

// ProviderEntry is one entry of the providers.<name> map.
type ProviderEntry struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Priority int    `mapstructure:"priority" yaml:"priority"`
	TimeoutMs int   `mapstructure:"timeout" yaml:"timeout"` // >= 1000
	Command  string `mapstructure:"command" yaml:"command"`
}

// MemoryConfig mirrors SPEC_FULL.md §6 memory.* keys.
type MemoryConfig struct {
	MaxEntries  int            `mapstructure:"max_entries" yaml:"max_entries"` // >= 100
	PersistPath string         `mapstructure:"persist_path" yaml:"persist_path"`
	AutoCleanup bool           `mapstructure:"auto_cleanup" yaml:"auto_cleanup"`
	CleanupDays int            `mapstructure:"cleanup_days" yaml:"cleanup_days"` // >= 1
	Cleanup     CleanupConfig  `mapstructure:"cleanup" yaml:"cleanup"`
}

// CleanupConfig configures the Memory Manager's smart-cleanup policy.
type CleanupConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	Strategy         string  `mapstructure:"strategy" yaml:"strategy"` // oldest | least_accessed | hybrid
	TriggerThreshold float64 `mapstructure:"trigger_threshold" yaml:"trigger_threshold"`
	TargetThreshold  float64 `mapstructure:"target_threshold" yaml:"target_threshold"`
	MinCleanupCount  int     `mapstructure:"min_cleanup_count" yaml:"min_cleanup_count"`
	MaxCleanupCount  int     `mapstructure:"max_cleanup_count" yaml:"max_cleanup_count"`
	RetentionDays    int     `mapstructure:"retention_days" yaml:"retention_days"`
	TrackAccess      bool    `mapstructure:"track_access" yaml:"track_access"`
}

// Validate enforces the bounds from SPEC_FULL.md §4.3 "Config validation".
func (c CleanupConfig) Validate() error {
	if c.TriggerThreshold < 0.5 || c.TriggerThreshold > 1.0 {
		return fmt.Errorf("memory.cleanup.trigger_threshold must be in [0.5, 1.0], got %v", c.TriggerThreshold)
	}
	if c.TargetThreshold < 0.1 || c.TargetThreshold > 0.9 {
		return fmt.Errorf("memory.cleanup.target_threshold must be in [0.1, 0.9], got %v", c.TargetThreshold)
	}
	if c.TargetThreshold >= c.TriggerThreshold {
		return fmt.Errorf("memory.cleanup.target_threshold (%v) must be < trigger_threshold (%v)", c.TargetThreshold, c.TriggerThreshold)
	}
	if c.MinCleanupCount < 1 {
		return fmt.Errorf("memory.cleanup.min_cleanup_count must be >= 1, got %d", c.MinCleanupCount)
	}
	if c.MaxCleanupCount < c.MinCleanupCount {
		return fmt.Errorf("memory.cleanup.max_cleanup_count (%d) must be >= min_cleanup_count (%d)", c.MaxCleanupCount, c.MinCleanupCount)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("memory.cleanup.retention_days must be >= 1, got %d", c.RetentionDays)
	}
	switch c.Strategy {
	case "", "oldest", "least_accessed", "hybrid":
	default:
		return fmt.Errorf("memory.cleanup.strategy %q is not one of oldest|least_accessed|hybrid", c.Strategy)
	}
	return nil
}

// WorkspaceConfig mirrors SPEC_FULL.md §6 workspace.* keys.
type WorkspaceConfig struct {
	PRDPath        string `mapstructure:"prd_path" yaml:"prd_path"`
	TmpPath        string `mapstructure:"tmp_path" yaml:"tmp_path"`
	AutoCleanupTmp bool   `mapstructure:"auto_cleanup_tmp" yaml:"auto_cleanup_tmp"`
	TmpCleanupDays int    `mapstructure:"tmp_cleanup_days" yaml:"tmp_cleanup_days"` // >= 1
}

// LogConfig mirrors pkg/logger.LogConfig plus the level enum from §6.
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"` // error|warn|info|debug|trace
	Path    string `mapstructure:"path" yaml:"path"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// ExecutionConfig mirrors SPEC_FULL.md §6 execution.* keys.
type ExecutionConfig struct {
	MaxConcurrentAgents int           `mapstructure:"max_concurrent_agents" yaml:"max_concurrent_agents"` // >= 1
	DefaultRetry        RetryConfig   `mapstructure:"default_retry" yaml:"default_retry"`
	DefaultTimeoutMs    int           `mapstructure:"default_timeout" yaml:"default_timeout"`
}

// RetryConfig mirrors the Agent Executor's retry options (§4.2).
type RetryConfig struct {
	MaxAttempts      int      `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelayMs   int      `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelayMs       int      `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffFactor    float64  `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	RetryableErrors  []string `mapstructure:"retryable_errors" yaml:"retryable_errors"`
}

// SessionConfig bounds the Session Manager's working set (§4.4).
type SessionConfig struct {
	MaxSessions int    `mapstructure:"max_sessions" yaml:"max_sessions"` // default 100
	FilePath    string `mapstructure:"file_path" yaml:"file_path"`
}

// SetDefaults registers every default value on v, mirroring the reference
// stack's internal/config/defaults.go SetDefaults convention.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("memory.max_entries", 10000)
	v.SetDefault("memory.auto_cleanup", true)
	v.SetDefault("memory.cleanup_days", 30)
	v.SetDefault("memory.cleanup.enabled", true)
	v.SetDefault("memory.cleanup.strategy", "hybrid")
	v.SetDefault("memory.cleanup.trigger_threshold", 0.9)
	v.SetDefault("memory.cleanup.target_threshold", 0.7)
	v.SetDefault("memory.cleanup.min_cleanup_count", 10)
	v.SetDefault("memory.cleanup.max_cleanup_count", 1000)
	v.SetDefault("memory.cleanup.retention_days", 90)
	v.SetDefault("memory.cleanup.track_access", true)

	v.SetDefault("workspace.auto_cleanup_tmp", true)
	v.SetDefault("workspace.tmp_cleanup_days", 7)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	v.SetDefault("execution.max_concurrent_agents", 4)
	v.SetDefault("execution.default_retry.max_attempts", 3)
	v.SetDefault("execution.default_retry.initial_delay", 1000)
	v.SetDefault("execution.default_retry.max_delay", 30000)
	v.SetDefault("execution.default_retry.backoff_factor", 2.0)
	v.SetDefault("execution.default_timeout", 120000)

	v.SetDefault("session.max_sessions", 100)
}

// Load reads the config file at path (JSON or YAML, detected by extension)
// layered over SetDefaults, and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("AUTOMATOSX")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the bounds named in SPEC_FULL.md §6.
func (c *Config) Validate() error {
	hasEnabled := false
	for name, p := range c.Providers {
		if p.Enabled {
			hasEnabled = true
		}
		if p.Enabled && p.TimeoutMs < 1000 {
			return fmt.Errorf("providers.%s.timeout must be >= 1000ms, got %d", name, p.TimeoutMs)
		}
	}
	if len(c.Providers) > 0 && !hasEnabled {
		return fmt.Errorf("at least one provider must be enabled")
	}
	if c.Memory.MaxEntries != 0 && c.Memory.MaxEntries < 100 {
		return fmt.Errorf("memory.max_entries must be >= 100, got %d", c.Memory.MaxEntries)
	}
	if c.Memory.CleanupDays != 0 && c.Memory.CleanupDays < 1 {
		return fmt.Errorf("memory.cleanup_days must be >= 1, got %d", c.Memory.CleanupDays)
	}
	if err := c.Memory.Cleanup.Validate(); err != nil {
		return err
	}
	if c.Workspace.TmpCleanupDays != 0 && c.Workspace.TmpCleanupDays < 1 {
		return fmt.Errorf("workspace.tmp_cleanup_days must be >= 1, got %d", c.Workspace.TmpCleanupDays)
	}
	if c.Execution.MaxConcurrentAgents != 0 && c.Execution.MaxConcurrentAgents < 1 {
		return fmt.Errorf("execution.max_concurrent_agents must be >= 1, got %d", c.Execution.MaxConcurrentAgents)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("logging.level %q is not one of error|warn|info|debug|trace", c.Logging.Level)
	}
	return nil
}

// RetryPolicy converts RetryConfig into time.Duration fields for the
// executor, applying the reference stack's documented defaults when unset.
func (r RetryConfig) RetryPolicy() (maxAttempts int, initialDelay, maxDelay time.Duration, backoff float64) {
	maxAttempts = r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initialDelay = time.Duration(r.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay = time.Duration(r.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	backoff = r.BackoffFactor
	if backoff <= 0 {
		backoff = 2.0
	}
	return
}
