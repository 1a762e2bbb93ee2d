// Package ratelimit provides a fixed-window, per-client rate limiter used by
// the external driver in front of the core's execute entrypoint. It has no
// third-party grounding in the reference stack (see DESIGN.md) and is
// implemented directly on sync/time.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures a single client's window.
type Config struct {
	WindowMs              int64
	MaxRequests           int
	SkipSuccessfulRequests bool
	SkipFailedRequests     bool
}

type clientWindow struct {
	mu        sync.Mutex
	timestamps []time.Time
}

// Limiter tracks fixed windows per client key.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*clientWindow
	now     func() time.Time
}

// New creates a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = 60_000
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	return &Limiter{
		cfg:     cfg,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

func (l *Limiter) window(client string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.clients[client]
	if !ok {
		w = &clientWindow{}
		l.clients[client] = w
	}
	return w
}

func (l *Limiter) prune(w *clientWindow, now time.Time) {
	cutoff := now.Add(-time.Duration(l.cfg.WindowMs) * time.Millisecond)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

// Allow records a request attempt for client and reports whether it is
// within the window's limit. It always records the attempt timestamp;
// callers that want success/failure-conditional accounting should call
// RecordSuccess/RecordFailure to retroactively exclude it.
func (l *Limiter) Allow(client string) bool {
	w := l.window(client)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	l.prune(w, now)

	if len(w.timestamps) >= l.cfg.MaxRequests {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// RecordSuccess retroactively removes the most recent recorded timestamp for
// client from the window if SkipSuccessfulRequests is configured.
func (l *Limiter) RecordSuccess(client string) {
	if l.cfg.SkipSuccessfulRequests {
		l.popLatest(client)
	}
}

// RecordFailure retroactively removes the most recent recorded timestamp for
// client from the window if SkipFailedRequests is configured.
func (l *Limiter) RecordFailure(client string) {
	if l.cfg.SkipFailedRequests {
		l.popLatest(client)
	}
}

func (l *Limiter) popLatest(client string) {
	w := l.window(client)
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.timestamps) > 0 {
		w.timestamps = w.timestamps[:len(w.timestamps)-1]
	}
}

// Remaining returns how many requests client may still make in the current
// window.
func (l *Limiter) Remaining(client string) int {
	w := l.window(client)
	w.mu.Lock()
	defer w.mu.Unlock()
	l.prune(w, l.now())
	rem := l.cfg.MaxRequests - len(w.timestamps)
	if rem < 0 {
		return 0
	}
	return rem
}
