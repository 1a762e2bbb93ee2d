package session

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"automatosx/pkg/logger"
)

// Manager is the process-wide singleton tracking every in-flight and
// recently-finished delegation session.
type Manager struct {
	cfg Config
	log *zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	persist *persister
}

// New creates a Manager over cfg, loading any existing journal at
// cfg.FilePath. Invalid records in the journal are skipped with a warning
// rather than failing startup.
func New(cfg Config) (*Manager, error) {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	m := &Manager{cfg: cfg, log: logger.Get(), sessions: make(map[string]*Session)}
	m.persist = newPersister(cfg.FilePath, m.snapshot)

	if cfg.FilePath != "" {
		loaded, err := loadFromFile(cfg.FilePath)
		if err != nil {
			m.log.Warn().Err(err).Msg("session journal unreadable, starting fresh")
		}
		for _, s := range loaded {
			if !validSessionRecord(s) {
				m.log.Warn().Str("id", s.ID).Msg("skipping invalid session record on load")
				continue
			}
			m.sessions[s.ID] = s
		}
	}
	return m, nil
}

func validSessionRecord(s *Session) bool {
	if s == nil {
		return false
	}
	if _, err := uuid.Parse(s.ID); err != nil {
		return false
	}
	return !s.CreatedAt.IsZero() && !s.UpdatedAt.IsZero()
}

func (m *Manager) snapshot() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// CreateSession starts a new session owned by initiator, evicting over-
// capacity sessions first.
func (m *Manager) CreateSession(task, initiator string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.MaxSessions {
		m.cleanupLocked()
	}

	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Task:      task,
		Initiator: initiator,
		Agents:    []string{initiator},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[s.ID] = s
	m.cleanupOldLocked(7)
	m.persist.Request()
	return s, nil
}

// JoinOrCreate satisfies executor.SessionJoiner: an empty sessionID starts a
// fresh session owned by initiator; a non-empty one must already exist.
func (m *Manager) JoinOrCreate(sessionID, initiator string) (string, error) {
	if sessionID == "" {
		s, err := m.CreateSession("", initiator)
		if err != nil {
			return "", err
		}
		return s.ID, nil
	}
	if _, ok := m.GetSession(sessionID); !ok {
		return "", errInvalidFormat("session " + sessionID + " not found")
	}
	return sessionID, nil
}

// AddAgent records that agentName participated in sessionID, satisfying
// executor.SessionJoiner.
func (m *Manager) AddAgent(sessionID, agentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return errInvalidFormat("session " + sessionID + " not found")
	}
	for _, a := range s.Agents {
		if a == agentName {
			return nil
		}
	}
	s.Agents = append(s.Agents, agentName)
	s.UpdatedAt = time.Now().UTC()
	m.persist.Request()
	return nil
}

// GetSession returns a session by ID. An invalid or absent ID returns
// ok=false, never an error — only mutating operations raise InvalidFormat.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetActiveSessions returns every session currently StatusActive.
func (m *Manager) GetActiveSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			out = append(out, s)
		}
	}
	return out
}

// GetActiveSessionsForAgent returns active sessions that name agentName
// among their participants.
func (m *Manager) GetActiveSessionsForAgent(agentName string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		for _, a := range s.Agents {
			if a == agentName {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// CompleteSession transitions a session to StatusCompleted.
func (m *Manager) CompleteSession(id string) error {
	return m.transition(id, StatusCompleted, "")
}

// FailSession transitions a session to StatusFailed, recording errMsg.
func (m *Manager) FailSession(id, errMsg string) error {
	return m.transition(id, StatusFailed, errMsg)
}

func (m *Manager) transition(id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errInvalidFormat("session " + id + " not found")
	}
	s.Status = status
	s.Error = errMsg
	s.UpdatedAt = time.Now().UTC()
	m.persist.Request()
	return nil
}

// UpdateMetadata merges patch into the session's metadata, rejecting merges
// whose serialized size exceeds 10 KiB.
func (m *Manager) UpdateMetadata(id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errInvalidFormat("session " + id + " not found")
	}

	merged := make(map[string]any, len(s.Metadata)+len(patch))
	for k, v := range s.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return errCreationFailed("metadata not serializable", err)
	}
	if len(encoded) > maxMetadataBytes {
		return errMetadataTooLarge(len(encoded))
	}

	s.Metadata = merged
	s.UpdatedAt = time.Now().UTC()
	m.persist.Request()
	return nil
}

// cleanup evicts sessions down to capacity: completed/failed sessions sort
// first, then oldest-updated-first, until the working set fits MaxSessions.
func (m *Manager) cleanupLocked() {
	if len(m.sessions) < m.cfg.MaxSessions {
		return
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.sessions[ids[i]], m.sessions[ids[j]]
		ai, bi := statusEvictionPriority(a.Status), statusEvictionPriority(b.Status)
		if ai != bi {
			return ai < bi
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})

	excess := len(m.sessions) - m.cfg.MaxSessions + 1
	for i := 0; i < excess && i < len(ids); i++ {
		delete(m.sessions, ids[i])
	}
}

func statusEvictionPriority(s Status) int {
	switch s {
	case StatusCompleted, StatusFailed:
		return 0
	default:
		return 1
	}
}

// cleanupOldLocked evicts completed/failed sessions older than maxAgeDays.
func (m *Manager) cleanupOldLocked(maxAgeDays int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for id, s := range m.sessions {
		if (s.Status == StatusCompleted || s.Status == StatusFailed) && s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// CleanupOldSessions evicts completed/failed sessions older than maxAgeDays.
func (m *Manager) CleanupOldSessions(maxAgeDays int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.cleanupOldLocked(maxAgeDays)
	if n > 0 {
		m.persist.Request()
	}
	return n
}

// Cleanup runs capacity-based eviction immediately.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.sessions)
	m.cleanupLocked()
	if len(m.sessions) != before {
		m.persist.Request()
	}
}

// Destroy cancels any pending debounced write and flushes once.
func (m *Manager) Destroy() error {
	return m.persist.Flush()
}
