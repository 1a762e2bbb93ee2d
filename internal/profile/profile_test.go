package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadValidProfile(t *testing.T) {
	dir := t.TempDir()
	body := `
name: backend-dev
role: Backend Developer
abilities: [go-style, testing]
orchestration:
  maxDelegationDepth: 3
stages:
  - name: plan
    description: plan the work
  - name: implement
    description: write the code
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backend-dev.yaml"), []byte(body), 0o644))

	l := NewLoader(dir)
	p, err := l.Load("backend-dev")
	require.NoError(t, err)
	assert.Equal(t, "backend-dev", p.Name)
	assert.Equal(t, 3, p.MaxDelegationDepth())
	assert.Len(t, p.Stages, 2)
}

func TestLoaderRejectsInvalidName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad_Name.yaml"), []byte("name: Bad_Name\n"), 0o644))

	l := NewLoader(dir)
	_, err := l.Load("Bad_Name")
	assert.Error(t, err)
}

func TestLoaderRejectsDuplicateStageNames(t *testing.T) {
	dir := t.TempDir()
	body := "name: dup-agent\nstages:\n  - name: plan\n  - name: plan\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup-agent.yaml"), []byte(body), 0o644))

	l := NewLoader(dir)
	_, err := l.Load("dup-agent")
	assert.Error(t, err)
}

func TestLoaderLoadAllSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("name: a-agent\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a profile"), 0o644))

	l := NewLoader(dir)
	profiles, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "a-agent", profiles[0].Name)
}

func TestDefaultMaxDelegationDepth(t *testing.T) {
	p := &AgentProfile{Name: "x"}
	assert.Equal(t, 2, p.MaxDelegationDepth())
}
