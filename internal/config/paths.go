// Package config loads and validates the top-level automatosx.config.json
// (or .yaml) file plus the on-disk .automatosx/ project layout. Loading
// itself is an external-driver concern (see SPEC_FULL.md §1); the core
// subsystems only ever see the already-decoded Config struct below.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"automatosx/internal/pathutil"
)

// ProjectDir is the name of the per-project state directory.
const ProjectDir = ".automatosx"

// Layout resolves every well-known path under a project root's .automatosx/
// directory, matching the filesystem layout in SPEC_FULL.md §6.
type Layout struct {
	Root string
}

// NewLayout anchors a Layout at root (the directory containing .automatosx/).
func NewLayout(root string) (*Layout, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: resolve working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project root: %w", err)
	}
	return &Layout{Root: abs}, nil
}

func (l *Layout) base() string { return filepath.Join(l.Root, ProjectDir) }

// AgentsDir returns .automatosx/agents.
func (l *Layout) AgentsDir() string { return filepath.Join(l.base(), "agents") }

// AbilitiesDir returns .automatosx/abilities.
func (l *Layout) AbilitiesDir() string { return filepath.Join(l.base(), "abilities") }

// TeamsDir returns .automatosx/teams.
func (l *Layout) TeamsDir() string { return filepath.Join(l.base(), "teams") }

// TemplatesDir returns .automatosx/templates.
func (l *Layout) TemplatesDir() string { return filepath.Join(l.base(), "templates") }

// MemoryDBPath returns .automatosx/memory/memory.db.
func (l *Layout) MemoryDBPath() string { return filepath.Join(l.base(), "memory", "memory.db") }

// SessionsFilePath returns .automatosx/sessions/sessions.json.
func (l *Layout) SessionsFilePath() string {
	return filepath.Join(l.base(), "sessions", "sessions.json")
}

// CheckpointsDir returns .automatosx/checkpoints.
func (l *Layout) CheckpointsDir() string { return filepath.Join(l.base(), "checkpoints") }

// WorkspacesDir returns .automatosx/workspaces.
func (l *Layout) WorkspacesDir() string { return filepath.Join(l.base(), "workspaces") }

// PRDDir returns .automatosx/PRD.
func (l *Layout) PRDDir() string { return filepath.Join(l.base(), "PRD") }

// TmpDir returns .automatosx/tmp.
func (l *Layout) TmpDir() string { return filepath.Join(l.base(), "tmp") }

// LogsDir returns .automatosx/logs.
func (l *Layout) LogsDir() string { return filepath.Join(l.base(), "logs") }

// ConfigFilePath returns the top-level automatosx.config.json path.
func (l *Layout) ConfigFilePath() string { return filepath.Join(l.Root, "automatosx.config.json") }

// EnsureDirs creates every directory this layout names (not the config file
// itself, nor memory.db/sessions.json, which are created lazily by their
// owning managers).
func (l *Layout) EnsureDirs() error {
	dirs := []string{
		l.AgentsDir(), l.AbilitiesDir(), l.TeamsDir(), l.TemplatesDir(),
		filepath.Dir(l.MemoryDBPath()), filepath.Dir(l.SessionsFilePath()),
		l.CheckpointsDir(), l.WorkspacesDir(), l.PRDDir(), l.TmpDir(), l.LogsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", d, err)
		}
	}
	return nil
}

// ExpandPath expands a leading "~" using pathutil and makes the result
// absolute relative to the layout root if it isn't already.
func (l *Layout) ExpandPath(p string) (string, error) {
	expanded, err := pathutil.ExpandHome(p)
	if err != nil {
		return "", err
	}
	if pathutil.IsAbsolute(expanded) {
		return expanded, nil
	}
	return filepath.Join(l.Root, expanded), nil
}
