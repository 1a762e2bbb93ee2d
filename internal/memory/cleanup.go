package memory

import (
	"context"
	"database/sql"
	"time"
)

// runCleanupLocked evicts entries down toward cfg.TargetThreshold·MaxEntries,
// bounded by [MinCleanupCount, MaxCleanupCount], using the configured
// strategy. Caller must hold m.mu. Returns the number of rows removed.
func (m *Manager) runCleanupLocked(ctx context.Context) (int, error) {
	target := int(float64(m.cfg.MaxEntries) * m.cfg.TargetThreshold)
	toRemove := m.entryCount - target
	if toRemove < m.cfg.MinCleanupCount {
		toRemove = m.cfg.MinCleanupCount
	}
	if toRemove > m.cfg.MaxCleanupCount {
		toRemove = m.cfg.MaxCleanupCount
	}
	if toRemove <= 0 {
		return 0, nil
	}
	if toRemove > m.entryCount {
		toRemove = m.entryCount
	}

	strategy := m.cfg.Strategy
	if strategy == CleanupLeastAccessed && !m.cfg.TrackAccess {
		strategy = CleanupOldest
	}

	var res sql.Result
	var err error
	switch strategy {
	case CleanupLeastAccessed:
		res, err = m.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE id IN (
			SELECT id FROM memory_entries ORDER BY access_count ASC, last_accessed_at ASC LIMIT ?
		)`, toRemove)
	case CleanupHybrid:
		res, err = m.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE id IN (
			SELECT id FROM memory_entries ORDER BY access_count ASC, created_at ASC LIMIT ?
		)`, toRemove)
	default: // CleanupOldest
		res, err = m.stmtDeleteOldestN.ExecContext(ctx, toRemove)
	}
	if err != nil {
		return 0, errQueryError("smart cleanup", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errQueryError("read cleanup rows affected", err)
	}

	m.log.Info().Str("strategy", string(strategy)).Int64("removed", n).Msg("memory smart cleanup ran")
	return int(n), nil
}

// CleanupBeforeCutoff deletes every entry older than cutoff, used by
// retentionDays enforcement independent of the entry-count budget.
func (m *Manager) CleanupBeforeCutoff(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.stmtDeleteBeforeCutoff.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, errQueryError("cleanup before cutoff", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errQueryError("read cleanup rows affected", err)
	}
	m.entryCount -= int(n)
	return int(n), nil
}
