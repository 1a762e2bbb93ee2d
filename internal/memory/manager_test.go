package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "memory.db"))
	m, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestValidateConfigRejectsOutOfRangeThresholds(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"trigger too low", Config{TriggerThreshold: 0.4, TargetThreshold: 0.3, MinCleanupCount: 1, MaxCleanupCount: 1, RetentionDays: 1}},
		{"target too high", Config{TriggerThreshold: 0.9, TargetThreshold: 0.95, MinCleanupCount: 1, MaxCleanupCount: 1, RetentionDays: 1}},
		{"target >= trigger", Config{TriggerThreshold: 0.8, TargetThreshold: 0.8, MinCleanupCount: 1, MaxCleanupCount: 1, RetentionDays: 1}},
		{"min cleanup < 1", Config{TriggerThreshold: 0.9, TargetThreshold: 0.7, MinCleanupCount: 0, MaxCleanupCount: 1, RetentionDays: 1}},
		{"max < min", Config{TriggerThreshold: 0.9, TargetThreshold: 0.7, MinCleanupCount: 5, MaxCleanupCount: 2, RetentionDays: 1}},
		{"retention < 1", Config{TriggerThreshold: 0.9, TargetThreshold: 0.7, MinCleanupCount: 1, MaxCleanupCount: 2, RetentionDays: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, ValidateConfig(tc.cfg))
		})
	}
}

func TestAddInsertsAndTracksCount(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Add(context.Background(), "hello world", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, 1, m.EntryCount())
}

func TestAddTriggersCleanupBeforeCapacity(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "memory.db"))
	cfg.MaxEntries = 5
	cfg.TriggerThreshold = 0.6 // triggers at 3 entries
	cfg.TargetThreshold = 0.2  // target of 1 entry
	cfg.MinCleanupCount = 1
	cfg.MaxCleanupCount = 10
	cfg.Strategy = CleanupOldest
	m, err := Open(cfg)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := m.Add(ctx, "entry", Metadata{Type: EntryOther, Source: "test"})
		require.NoError(t, err)
	}
	assert.Less(t, m.EntryCount(), 5)
}

func TestSearchSanitizesAndScoresResults(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "the quick brown fox jumps", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)
	_, err = m.Add(ctx, "an entirely unrelated sentence", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)

	results, err := m.Search(ctx, Query{Text: "quick fox", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "quick brown fox")
	assert.GreaterOrEqual(t, results[0].Similarity, 0.0)
	assert.LessOrEqual(t, results[0].Similarity, 1.0)
}

func TestSearchAppliesMetadataFilters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "alpha task content", Metadata{Type: EntryTask, Source: "agentA"})
	require.NoError(t, err)
	_, err = m.Add(ctx, "alpha code content", Metadata{Type: EntryCode, Source: "agentB"})
	require.NoError(t, err)

	results, err := m.Search(ctx, Query{Text: "alpha", Filters: Filters{Types: []EntryType{EntryTask}}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, EntryTask, results[0].Metadata.Type)
}

func TestSearchEmptyAfterSanitizeReturnsNoMatches(t *testing.T) {
	m := newTestManager(t)
	results, err := m.Search(context.Background(), Query{Text: "AND OR NOT", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExportImportRoundTripSkipsDuplicates(t *testing.T) {
	src := newTestManager(t)
	ctx := context.Background()
	_, err := src.Add(ctx, "memory one", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)
	_, err = src.Add(ctx, "memory two", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)

	doc, err := src.Export(ctx, Filters{})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Metadata.TotalEntries)

	dst := newTestManager(t)
	result, err := dst.Import(ctx, *doc, ImportOptions{SkipDuplicates: true, Validate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Errors)

	result2, err := dst.Import(ctx, *doc, ImportOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result2.Imported)
	assert.Equal(t, 2, result2.Skipped)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, "persisted entry", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, m.Backup(backupPath))

	_, err = m.Add(ctx, "entry after backup", Metadata{Type: EntryOther, Source: "test"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.EntryCount())

	require.NoError(t, m.Restore(backupPath))
	assert.Equal(t, 1, m.EntryCount())
}
