// Package workspace manages per-agent filesystem workspaces (PRD and tmp
// directories), grounded in the reference stack's internal/workspace
// manager (binding map, ResolvePath traversal guard, age-based tmp
// cleanup), keyed by agent name instead of session ID.
package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"automatosx/internal/apperr"
	"automatosx/internal/pathutil"
)

// Binding is an agent's resolved workspace root.
type Binding struct {
	AgentName  string
	Path       string
	BoundAt    time.Time
	LastAccess time.Time
}

// Manager resolves and guards per-agent workspace directories.
type Manager struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	root     string // WorkspacesDir, one subdirectory per agent
	prdDir   string
	tmpDir   string
}

// New creates a Manager. root, prdDir, and tmpDir are typically
// Layout.WorkspacesDir(), Layout.PRDDir(), Layout.TmpDir().
func New(root, prdDir, tmpDir string) *Manager {
	return &Manager{
		bindings: make(map[string]*Binding),
		root:     root,
		prdDir:   prdDir,
		tmpDir:   tmpDir,
	}
}

// Workspace resolves (creating if needed) the agent's workspace directory.
func (m *Manager) Workspace(agentName string) (*Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.bindings[agentName]; ok {
		b.LastAccess = time.Now()
		return b, nil
	}

	path := filepath.Join(m.root, agentName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigError, "create agent workspace", err)
	}

	now := time.Now()
	b := &Binding{AgentName: agentName, Path: path, BoundAt: now, LastAccess: now}
	m.bindings[agentName] = b
	return b, nil
}

// ResolvePath resolves a relative path within an agent's workspace, rejecting
// absolute paths and any traversal outside the workspace root.
func (m *Manager) ResolvePath(agentName, relativePath string) (string, error) {
	b, err := m.Workspace(agentName)
	if err != nil {
		return "", err
	}
	return pathutil.WithinRoot(b.Path, relativePath)
}

// PRDPath returns the shared PRD (product requirements doc) directory path.
func (m *Manager) PRDPath() string { return m.prdDir }

// TmpPath returns an agent's tmp subdirectory, creating it if needed.
func (m *Manager) TmpPath(agentName string) (string, error) {
	path := filepath.Join(m.tmpDir, agentName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", apperr.Wrap(apperr.CodeConfigError, "create agent tmp directory", err)
	}
	return path, nil
}

// CleanupTmp removes tmp files older than maxAge across all agents' tmp
// subdirectories, mirroring the reference stack's age-threshold cleanup.
func (m *Manager) CleanupTmp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperr.Wrap(apperr.CodeConfigError, "read tmp directory", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, agentDir := range entries {
		if !agentDir.IsDir() {
			continue
		}
		agentPath := filepath.Join(m.tmpDir, agentDir.Name())
		files, err := os.ReadDir(agentPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			full := filepath.Join(agentPath, f.Name())
			if err := os.RemoveAll(full); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Unbind removes an agent's cached binding (not its files on disk).
func (m *Manager) Unbind(agentName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, agentName)
}

// List returns every currently bound agent workspace.
func (m *Manager) List() []*Binding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	return out
}
