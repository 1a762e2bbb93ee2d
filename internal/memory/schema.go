package memory

import "database/sql"

// createSchema creates memory_entries, the memory_fts shadow index, and the
// triggers that keep them synchronized. Safe to call on every open.
func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			last_accessed_at DATETIME,
			access_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_entries_created ON memory_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_entries_access ON memory_entries(access_count, last_accessed_at)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
			content,
			metadata,
			content='memory_entries',
			content_rowid='id',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ai AFTER INSERT ON memory_entries BEGIN
			INSERT INTO memory_fts(rowid, content, metadata) VALUES (new.id, new.content, new.metadata);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ad AFTER DELETE ON memory_entries BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content, metadata) VALUES ('delete', old.id, old.content, old.metadata);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_au AFTER UPDATE ON memory_entries BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content, metadata) VALUES ('delete', old.id, old.content, old.metadata);
			INSERT INTO memory_fts(rowid, content, metadata) VALUES (new.id, new.content, new.metadata);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errDatabaseError("create schema", err)
		}
	}
	return nil
}
