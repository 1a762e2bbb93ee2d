package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	return New(filepath.Join(root, "workspaces"), filepath.Join(root, "PRD"), filepath.Join(root, "tmp"))
}

func TestWorkspaceCreatesPerAgentDir(t *testing.T) {
	m := newTestManager(t)
	b, err := m.Workspace("backend-dev")
	require.NoError(t, err)
	assert.DirExists(t, b.Path)
}

func TestResolvePathRejectsAbsolute(t *testing.T) {
	m := newTestManager(t)
	_, err := m.ResolvePath("backend-dev", "/etc/passwd")
	assert.Error(t, err)
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	m := newTestManager(t)
	_, err := m.ResolvePath("backend-dev", "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolvePathAllowsNestedRelative(t *testing.T) {
	m := newTestManager(t)
	resolved, err := m.ResolvePath("backend-dev", "src/main.go")
	require.NoError(t, err)
	assert.Contains(t, resolved, "backend-dev")
}

func TestCleanupTmpRemovesOldFiles(t *testing.T) {
	m := newTestManager(t)
	tmpPath, err := m.TmpPath("backend-dev")
	require.NoError(t, err)

	oldFile := filepath.Join(tmpPath, "old.txt")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, old, old))

	newFile := filepath.Join(tmpPath, "new.txt")
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o644))

	removed, err := m.CleanupTmp(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, newFile)
}
