package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"automatosx/pkg/logger"
)

// persister coalesces rapid saveToFile requests behind a single reset-not-
// recreated time.Timer, so N mutations inside one debounce window cost one
// write. Grounded on Design Note 9's coalescing-writer pattern, generalized
// from the reference stack's synchronous FileConfigStore.saveAll to debounced
// + atomic temp-file-then-rename.
type persister struct {
	path  string
	mu    sync.Mutex
	timer *time.Timer
	snap  func() any // returns the current state snapshot to serialize
}

func newPersister(path string, snap func() any) *persister {
	return &persister{path: path, snap: snap}
}

// Request schedules a write to occur after persistDebounce, resetting any
// already-pending timer rather than creating a second one.
func (p *persister) Request() {
	if p.path == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer == nil {
		p.timer = time.AfterFunc(persistDebounce, p.flush)
		return
	}
	p.timer.Reset(persistDebounce)
}

func (p *persister) flush() {
	if err := p.writeNow(); err != nil {
		logger.Get().Error().Err(err).Str("path", p.path).Msg("session persist failed")
	}
}

// Flush cancels any pending timer and writes once, synchronously.
func (p *persister) Flush() error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	return p.writeNow()
}

func (p *persister) writeNow() error {
	if p.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(p.snap(), "", "  ")
	if err != nil {
		return fmt.Errorf("session persist: marshal: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session persist: create directory: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session persist: write temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session persist: rename temp file: %w", err)
	}
	return nil
}

// loadFromFile reads and parses the journal at path. A missing file is not
// an error — callers start with an empty store. Any other read/parse
// failure moves the corrupted file aside and reports it so the caller can
// start fresh rather than fail to boot.
func loadFromFile(path string) ([]*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		quarantine(path)
		return nil, fmt.Errorf("session persist: read journal: %w", err)
	}

	var sessions []*Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		quarantine(path)
		return nil, fmt.Errorf("session persist: parse journal: %w", err)
	}
	return sessions, nil
}

func quarantine(path string) {
	dest := fmt.Sprintf("%s.corrupted.%d", path, time.Now().UnixNano())
	if err := os.Rename(path, dest); err != nil {
		logger.Get().Warn().Err(err).Str("path", path).Msg("failed to quarantine corrupted session journal")
	}
}
