package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionAddsInitiatorAsAgent(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	s, err := m.CreateSession("build the widget", "architect")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, []string{"architect"}, s.Agents)
}

func TestGetSessionAbsentReturnsNotOK(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	_, ok := m.GetSession("00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
}

func TestAddAgentOnMissingSessionFails(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	err = m.AddAgent("nonexistent", "reviewer")
	assert.Error(t, err)
}

func TestAddAgentIsIdempotent(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := m.CreateSession("task", "architect")
	require.NoError(t, err)

	require.NoError(t, m.AddAgent(s.ID, "reviewer"))
	require.NoError(t, m.AddAgent(s.ID, "reviewer"))

	got, _ := m.GetSession(s.ID)
	assert.Equal(t, []string{"architect", "reviewer"}, got.Agents)
}

func TestJoinOrCreateJoinsExistingSession(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := m.CreateSession("task", "architect")
	require.NoError(t, err)

	joined, err := m.JoinOrCreate(s.ID, "architect")
	require.NoError(t, err)
	assert.Equal(t, s.ID, joined)
}

func TestJoinOrCreateWithEmptyIDCreatesNew(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	id, err := m.JoinOrCreate("", "architect")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCompleteAndFailSession(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := m.CreateSession("task", "architect")
	require.NoError(t, err)

	require.NoError(t, m.CompleteSession(s.ID))
	got, _ := m.GetSession(s.ID)
	assert.Equal(t, StatusCompleted, got.Status)

	s2, _ := m.CreateSession("task2", "architect")
	require.NoError(t, m.FailSession(s2.ID, "boom"))
	got2, _ := m.GetSession(s2.ID)
	assert.Equal(t, StatusFailed, got2.Status)
	assert.Equal(t, "boom", got2.Error)
}

func TestUpdateMetadataRejectsOversizedPayload(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := m.CreateSession("task", "architect")
	require.NoError(t, err)

	huge := strings.Repeat("x", 11*1024)
	err = m.UpdateMetadata(s.ID, map[string]any{"blob": huge})
	assert.Error(t, err)
}

func TestCleanupEvictsCompletedFirst(t *testing.T) {
	cfg := Config{MaxSessions: 2}
	m, err := New(cfg)
	require.NoError(t, err)

	s1, _ := m.CreateSession("t1", "a")
	require.NoError(t, m.CompleteSession(s1.ID))
	_, _ = m.CreateSession("t2", "a")
	// Creating a third session while at capacity should evict s1 (completed).
	s3, _ := m.CreateSession("t3", "a")

	_, ok := m.GetSession(s1.ID)
	assert.False(t, ok)
	_, ok = m.GetSession(s3.ID)
	assert.True(t, ok)
}

func TestCleanupOldSessionsEvictsByAge(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := m.CreateSession("task", "architect")
	require.NoError(t, err)
	require.NoError(t, m.CompleteSession(s.ID))

	m.mu.Lock()
	m.sessions[s.ID].UpdatedAt = time.Now().UTC().AddDate(0, 0, -10)
	m.mu.Unlock()

	removed := m.CleanupOldSessions(7)
	assert.Equal(t, 1, removed)
}

func TestPersistRoundTripsThroughJournalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	cfg := Config{MaxSessions: 10, FilePath: path}

	m1, err := New(cfg)
	require.NoError(t, err)
	s, err := m1.CreateSession("task", "architect")
	require.NoError(t, err)
	require.NoError(t, m1.Destroy())

	m2, err := New(cfg)
	require.NoError(t, err)
	got, ok := m2.GetSession(s.ID)
	require.True(t, ok)
	assert.Equal(t, s.Task, got.Task)
}
