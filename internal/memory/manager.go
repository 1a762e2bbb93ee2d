package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"

	"automatosx/pkg/logger"
)

// Manager is the embedded full-text memory store: one SQLite handle, a set
// of prepared statements, and an in-memory entry count kept in sync with
// committed writes only.
type Manager struct {
	cfg Config
	log *zerolog.Logger
	db  *sql.DB

	mu         sync.Mutex
	entryCount int

	stmtInsert             *sql.Stmt
	stmtCount              *sql.Stmt
	stmtDeleteByID         *sql.Stmt
	stmtDeleteOldestN      *sql.Stmt
	stmtDeleteBeforeCutoff *sql.Stmt
	stmtBumpAccess         *sql.Stmt
}

// Open creates or opens the memory store at cfg.Path, applying WAL mode and
// a 5 second busy timeout via DSN pragmas so every pooled connection picks
// them up, matching the reference stack's storage DSN pattern.
func Open(cfg Config) (*Manager, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errDatabaseError("create database directory", err)
			}
		}
	}

	db, err := openDB(cfg.Path)
	if err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg, log: logger.Get(), db: db}
	if err := m.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.recount(); err != nil {
		db.Close()
		return nil, err
	}

	m.log.Info().Str("path", cfg.Path).Int("entryCount", m.entryCount).Msg("memory store opened")
	return m, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, errDatabaseError("open database", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildDSN(path string) string {
	v := url.Values{}
	v.Set("_pragma", "journal_mode=WAL")
	v.Add("_pragma", "busy_timeout=5000")
	v.Add("_pragma", "synchronous=NORMAL")
	return path + "?" + v.Encode()
}

func (m *Manager) prepareStatements() error {
	var err error
	prep := func(query string) *sql.Stmt {
		if err != nil {
			return nil
		}
		var stmt *sql.Stmt
		stmt, err = m.db.Prepare(query)
		return stmt
	}

	m.stmtInsert = prep(`INSERT INTO memory_entries (content, metadata, created_at, last_accessed_at, access_count) VALUES (?, ?, ?, ?, 0)`)
	m.stmtCount = prep(`SELECT COUNT(*) FROM memory_entries`)
	m.stmtDeleteByID = prep(`DELETE FROM memory_entries WHERE id = ?`)
	m.stmtDeleteOldestN = prep(`DELETE FROM memory_entries WHERE id IN (SELECT id FROM memory_entries ORDER BY created_at ASC LIMIT ?)`)
	m.stmtDeleteBeforeCutoff = prep(`DELETE FROM memory_entries WHERE created_at < ?`)
	m.stmtBumpAccess = prep(`UPDATE memory_entries SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`)
	if err != nil {
		return errDatabaseError("prepare statements", err)
	}
	return nil
}

func (m *Manager) recount() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recountLocked()
}

func (m *Manager) recountLocked() error {
	var n int
	if err := m.stmtCount.QueryRow().Scan(&n); err != nil {
		return errQueryError("recount entries", err)
	}
	m.entryCount = n
	return nil
}

// Close releases the underlying database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Add inserts a new entry, running smart cleanup first if the entry count
// ratio has crossed cfg.TriggerThreshold. Fails with CodeMemoryLimit if the
// store is still at capacity after cleanup.
func (m *Manager) Add(ctx context.Context, content string, metadata Metadata) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxEntries > 0 && float64(m.entryCount)/float64(m.cfg.MaxEntries) >= m.cfg.TriggerThreshold {
		removed, err := m.runCleanupLocked(ctx)
		if err != nil {
			return 0, err
		}
		m.entryCount -= removed
		if m.entryCount >= m.cfg.MaxEntries {
			return 0, errMemoryLimit()
		}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, errQueryError("marshal metadata", err)
	}

	now := time.Now().UTC()
	res, err := m.stmtInsert.ExecContext(ctx, content, string(metaJSON), now, now)
	if err != nil {
		return 0, errQueryError("insert entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errQueryError("read inserted id", err)
	}
	m.entryCount++
	return id, nil
}

// EntryCount returns the in-memory entry count, accurate as of the last
// committed write.
func (m *Manager) EntryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryCount
}

// Delete removes a single entry by id.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.stmtDeleteByID.ExecContext(ctx, id)
	if err != nil {
		return errQueryError("delete entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errQueryError("read delete rows affected", err)
	}
	if n == 0 {
		return errEntryNotFound(id)
	}
	m.entryCount--
	return nil
}
