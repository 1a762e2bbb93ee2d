package memory

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// contentHash is the spec's cheap duplicate-detection key: length plus the
// first and last 100 characters, not a cryptographic digest.
func contentHash(content string) string {
	const edge = 100
	n := len(content)
	head := content
	if n > edge {
		head = content[:edge]
	}
	tail := content
	if n > edge {
		tail = content[n-edge:]
	}
	return strconv.Itoa(n) + "|" + head + "|" + tail
}

// Export filters entries the same way Search's metadata filters do and
// serializes them as a self-describing JSON document.
func (m *Manager) Export(ctx context.Context, f Filters) (*ExportDocument, error) {
	where, args := buildFilterClause(f)
	query := `SELECT id, content, metadata, created_at, last_accessed_at, access_count FROM memory_entries e WHERE 1=1` + where

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errQueryError("export query", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			metaJSON   string
			lastAccess *time.Time
		)
		if err := rows.Scan(&e.ID, &e.Content, &metaJSON, &e.CreatedAt, &lastAccess, &e.AccessCount); err != nil {
			return nil, errQueryError("scan export row", err)
		}
		if lastAccess != nil {
			e.LastAccessedAt = *lastAccess
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, errQueryError("unmarshal export metadata", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errQueryError("iterate export rows", err)
	}

	return &ExportDocument{
		Version: exportFormatVersion,
		Metadata: ExportMetadata{
			ExportedAt:         time.Now().UTC(),
			TotalEntries:       len(entries),
			IncludesEmbeddings: false,
		},
		Entries: entries,
	}, nil
}

func isAcceptedExportVersion(v int) bool {
	if v == exportFormatVersion {
		return true
	}
	for _, legacy := range legacyExportVersions {
		if v == legacy {
			return true
		}
	}
	return false
}

// Import loads an ExportDocument, optionally clearing the existing store
// first. Per-entry failures are collected, never returned as a hard error.
func (m *Manager) Import(ctx context.Context, doc ExportDocument, opts ImportOptions) (*ImportResult, error) {
	if !isAcceptedExportVersion(doc.Version) {
		return nil, errConfig("unsupported export version " + strconv.Itoa(doc.Version))
	}

	if opts.ClearExisting {
		if _, err := m.db.ExecContext(ctx, `DELETE FROM memory_entries`); err != nil {
			return nil, errQueryError("clear existing entries", err)
		}
		m.mu.Lock()
		m.entryCount = 0
		m.mu.Unlock()
	}

	var existingHashes map[string]bool
	if opts.SkipDuplicates {
		existingHashes = m.existingContentHashes(ctx)
	}

	result := &ImportResult{}
	for _, e := range doc.Entries {
		if opts.Validate && (e.Content == "" || e.Metadata.Source == "") {
			result.Errors = append(result.Errors, "entry missing content or metadata.source")
			continue
		}
		hash := contentHash(e.Content)
		if opts.SkipDuplicates && existingHashes[hash] {
			result.Skipped++
			continue
		}
		if _, err := m.Add(ctx, e.Content, e.Metadata); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if existingHashes != nil {
			existingHashes[hash] = true
		}
		result.Imported++
	}
	return result, nil
}

func (m *Manager) existingContentHashes(ctx context.Context) map[string]bool {
	hashes := make(map[string]bool)
	rows, err := m.db.QueryContext(ctx, `SELECT content FROM memory_entries`)
	if err != nil {
		return hashes
	}
	defer rows.Close()
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			continue
		}
		hashes[contentHash(content)] = true
	}
	return hashes
}
