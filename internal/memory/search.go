package memory

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"
)

// ftsMetacharRe strips characters and boolean keywords FTS5's query syntax
// would otherwise interpret as operators, per the spec's sanitize-then-match
// rule: a query that reduces to nothing simply matches nothing.
var ftsMetacharRe = regexp.MustCompile(`["'^*():{}\[\]-]`)
var ftsBooleanWordRe = regexp.MustCompile(`(?i)\b(AND|OR|NOT)\b`)
var whitespaceRe = regexp.MustCompile(`\s+`)

func sanitizeFTSQuery(text string) string {
	text = ftsMetacharRe.ReplaceAllString(text, " ")
	text = ftsBooleanWordRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Search runs a sanitized FTS5 match with metadata filters applied in SQL,
// ranks by BM25 ascending, and maps rank to a [0,1] similarity score.
func (m *Manager) Search(ctx context.Context, q Query) ([]ScoredEntry, error) {
	sanitized := sanitizeFTSQuery(q.Text)
	if sanitized == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where, args := buildFilterClause(q.Filters)
	args = append([]any{sanitized}, args...)
	args = append(args, limit)

	query := `SELECT e.id, e.content, e.metadata, e.created_at, e.last_accessed_at, e.access_count, bm25(memory_fts) AS rank
		FROM memory_fts
		JOIN memory_entries e ON e.id = memory_fts.rowid
		WHERE memory_fts MATCH ?` + where + `
		ORDER BY rank ASC
		LIMIT ?`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errQueryError("search", err)
	}
	defer rows.Close()

	var results []ScoredEntry
	var ids []int64
	for rows.Next() {
		var (
			e          Entry
			metaJSON   string
			lastAccess *time.Time
			rank       float64
		)
		if err := rows.Scan(&e.ID, &e.Content, &metaJSON, &e.CreatedAt, &lastAccess, &e.AccessCount, &rank); err != nil {
			return nil, errQueryError("scan search row", err)
		}
		if lastAccess != nil {
			e.LastAccessedAt = *lastAccess
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, errQueryError("unmarshal metadata", err)
		}

		similarity := 1 / (1 + math.Abs(rank))
		if q.Threshold > 0 && similarity < q.Threshold {
			continue
		}
		results = append(results, ScoredEntry{Entry: e, Similarity: similarity})
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errQueryError("iterate search rows", err)
	}

	if m.cfg.TrackAccess && len(ids) > 0 {
		if err := m.bumpAccess(ctx, ids); err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (m *Manager) bumpAccess(ctx context.Context, ids []int64) error {
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := m.stmtBumpAccess.ExecContext(ctx, now, id); err != nil {
			return errQueryError("bump access count", err)
		}
	}
	return nil
}

// buildFilterClause renders Filters as an AND-conjoined SQL fragment
// (leading " AND ..."); an empty Filters produces no fragment.
func buildFilterClause(f Filters) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		clauses = append(clauses, "json_extract(e.metadata, '$.type') IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(f.Sources) > 0 {
		placeholders := make([]string, len(f.Sources))
		for i, s := range f.Sources {
			placeholders[i] = "?"
			args = append(args, s)
		}
		clauses = append(clauses, "json_extract(e.metadata, '$.source') IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.AgentID != "" {
		clauses = append(clauses, "json_extract(e.metadata, '$.agentId') = ?")
		args = append(args, f.AgentID)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "json_extract(e.metadata, '$.sessionId') = ?")
		args = append(args, f.SessionID)
	}
	for _, tag := range f.Tags {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(e.metadata, '$.tags') WHERE value = ?)")
		args = append(args, tag)
	}
	if f.CreatedRange != nil {
		if !f.CreatedRange.From.IsZero() {
			clauses = append(clauses, "e.created_at >= ?")
			args = append(args, f.CreatedRange.From)
		}
		if !f.CreatedRange.To.IsZero() {
			clauses = append(clauses, "e.created_at <= ?")
			args = append(args, f.CreatedRange.To)
		}
	}
	if f.MinImportance > 0 {
		clauses = append(clauses, "json_extract(e.metadata, '$.importance') >= ?")
		args = append(args, f.MinImportance)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}
