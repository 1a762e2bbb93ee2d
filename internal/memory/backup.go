package memory

import (
	"io"
	"os"
)

// Backup checkpoints the WAL into the main database file, then copies it to
// destPath, mirroring the reference stack's plain file-level copy.
func (m *Manager) Backup(destPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return errDatabaseError("backup: checkpoint wal", err)
	}
	return copyFile(m.cfg.Path, destPath)
}

// Restore replaces the live database with srcPath: it closes the current
// handle, validates srcPath exists, copies it into place, reopens with the
// same pragmas, rebuilds prepared statements, and recounts entries. Every
// failure is propagated. A missing srcPath leaves the Manager untouched; a
// failure after the current handle is closed leaves the Manager without an
// open database.
func (m *Manager) Restore(srcPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(srcPath); err != nil {
		return errDatabaseError("restore: source not found", err)
	}

	if err := m.db.Close(); err != nil {
		return errDatabaseError("restore: close current handle", err)
	}

	if err := copyFile(srcPath, m.cfg.Path); err != nil {
		return errDatabaseError("restore: copy source over current path", err)
	}

	reopened, err := openDB(m.cfg.Path)
	if err != nil {
		return errDatabaseError("restore: reopen database", err)
	}
	m.db = reopened

	if err := m.prepareStatements(); err != nil {
		return err
	}
	if err := m.recountLocked(); err != nil {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
