// Package memory implements the embedded full-text memory store: an
// append-mostly SQLite table with an FTS5 shadow index, bounded by a
// configurable entry budget and pruned by a pluggable cleanup strategy.
// Grounded on the reference stack's internal/storage package (WAL pragma
// DSN, prepared-statement style) generalized to memory's FTS5 schema; no
// vector search is carried forward.
package memory

import "time"

// EntryType classifies a MemoryEntry for filtering.
type EntryType string

const (
	EntryConversation EntryType = "conversation"
	EntryCode         EntryType = "code"
	EntryDocument     EntryType = "document"
	EntryTask         EntryType = "task"
	EntryOther        EntryType = "other"
)

// Metadata is the structured side-channel stored alongside content.
type Metadata struct {
	Type       EntryType `json:"type"`
	Source     string    `json:"source"`
	AgentID    string    `json:"agentId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Importance float64   `json:"importance,omitempty"`
}

// Entry is one row of the memory store.
type Entry struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	Metadata       Metadata  `json:"metadata"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt,omitempty"`
	AccessCount    int       `json:"accessCount"`
}

// ScoredEntry pairs an Entry with its search similarity in [0,1].
type ScoredEntry struct {
	Entry
	Similarity float64 `json:"similarity"`
}

// CleanupStrategy selects which entries smart cleanup evicts first.
type CleanupStrategy string

const (
	CleanupOldest        CleanupStrategy = "oldest"
	CleanupLeastAccessed CleanupStrategy = "least_accessed"
	CleanupHybrid        CleanupStrategy = "hybrid"
)

// Config governs store capacity, cleanup, and access tracking.
type Config struct {
	Path             string
	MaxEntries       int
	TriggerThreshold float64 // fraction of MaxEntries that triggers cleanup
	TargetThreshold  float64 // fraction of MaxEntries cleanup settles at
	MinCleanupCount  int
	MaxCleanupCount  int
	Strategy         CleanupStrategy
	TrackAccess      bool
	RetentionDays    int
}

// DefaultConfig returns sane defaults matching the reference stack's own
// storage defaults where applicable.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		MaxEntries:       10000,
		TriggerThreshold: 0.9,
		TargetThreshold:  0.7,
		MinCleanupCount:  10,
		MaxCleanupCount:  1000,
		Strategy:         CleanupHybrid,
		TrackAccess:      true,
		RetentionDays:    90,
	}
}

// DateRange bounds CreatedAt in a search filter; a zero field is unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Filters narrows a search to matching metadata.
type Filters struct {
	Types         []EntryType
	Sources       []string
	AgentID       string
	SessionID     string
	Tags          []string
	CreatedRange  *DateRange
	MinImportance float64
}

// Query is the input to Search.
type Query struct {
	Text      string
	Filters   Filters
	Limit     int
	Threshold float64 // results below this similarity are dropped; 0 disables
}

const exportFormatVersion = 1

var legacyExportVersions = []int{}

// ExportMetadata describes an export document's provenance.
type ExportMetadata struct {
	ExportedAt        time.Time `json:"exportedAt"`
	TotalEntries      int       `json:"totalEntries"`
	IncludesEmbeddings bool     `json:"includesEmbeddings"`
}

// ExportDocument is the on-disk JSON shape written by Export and read by Import.
type ExportDocument struct {
	Version  int            `json:"version"`
	Metadata ExportMetadata `json:"metadata"`
	Entries  []Entry        `json:"entries"`
}

// ImportOptions configures Import.
type ImportOptions struct {
	SkipDuplicates bool
	Validate       bool
	ClearExisting  bool
}

// ImportResult reports per-entry outcomes; failures never abort the batch.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}
