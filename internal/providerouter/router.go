// Package providerouter implements priority-ordered provider selection with
// penalty cooldowns, fallback, and background health tracking.
package providerouter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"automatosx/internal/apperr"
	"automatosx/internal/provider"
	"automatosx/pkg/logger"
)

// Config mirrors SPEC_FULL.md §4.1.1's RouterConfig, decoded externally by
// internal/config and handed in already-validated.
type Config struct {
	FallbackEnabled      bool
	ProviderCooldownMs   int64
	HealthCheckInterval  time.Duration // 0 disables the background loop
	HealthCheckCron      string        // e.g. "@every 30s"; empty uses HealthCheckInterval
}

// HealthStatus is one provider's most recently observed health snapshot.
type HealthStatus struct {
	Provider             string
	Available            bool
	LatencyMs             int64
	ConsecutiveFailures  int
	LastChecked          time.Time
}

// Router selects a provider.Provider for each execution, tracking health and
// applying cooldown penalties on failure.
type Router struct {
	cfg       Config
	log       *zerolog.Logger
	mu        sync.RWMutex
	providers []provider.Provider
	penalties map[string]time.Time // provider name -> cooldown expiry
	health    map[string]HealthStatus

	cronScheduler *cronScheduler
}

// New creates a Router over the given providers, sorted ascending by
// priority as SPEC_FULL.md §4.1 step 1 requires.
func New(cfg Config, providers []provider.Provider) *Router {
	sorted := make([]provider.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	log := logger.Get().With().Str("component", "providerouter").Logger()
	r := &Router{
		cfg:       cfg,
		log:       &log,
		providers: sorted,
		penalties: make(map[string]time.Time),
		health:    make(map[string]HealthStatus),
	}
	r.startHealthLoop()
	return r
}

// Execute runs req against the best available provider, applying fallback
// and penalty rules per SPEC_FULL.md §4.1.
func (r *Router) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	r.mu.RLock()
	total := len(r.providers)
	r.mu.RUnlock()
	if total == 0 {
		return nil, ErrNoProvidersConfigured()
	}

	candidates := r.candidates(ctx)
	if len(candidates) == 0 {
		return nil, ErrNoProvidersAvailable()
	}

	var lastErr error
	for _, p := range candidates {
		resp, err := p.Execute(ctx, req)
		if err == nil {
			r.clearPenalty(p.Name())
			return resp, nil
		}

		lastErr = err
		r.log.Warn().Str("provider", p.Name()).Err(err).Msg("provider execution failed")

		if !r.cfg.FallbackEnabled {
			return nil, err
		}
		r.penalize(p.Name())
	}

	return nil, apperr.Wrap(apperr.CodeAllProvidersFailed, "every candidate provider failed", lastErr)
}

// SelectProvider returns the provider that Execute would try first, without
// invoking it.
func (r *Router) SelectProvider(ctx context.Context) (provider.Provider, error) {
	candidates := r.candidates(ctx)
	if len(candidates) == 0 {
		r.mu.RLock()
		total := len(r.providers)
		r.mu.RUnlock()
		if total == 0 {
			return nil, ErrNoProvidersConfigured()
		}
		return nil, ErrNoProvidersAvailable()
	}
	return candidates[0], nil
}

// GetAvailableProviders probes every registered provider concurrently and
// returns the ones that pass IsAvailable and are not under penalty.
func (r *Router) GetAvailableProviders(ctx context.Context) []provider.Provider {
	return r.candidates(ctx)
}

// GetHealthStatus returns a snapshot of the most recent health check for
// every provider.
func (r *Router) GetHealthStatus() []HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HealthStatus, 0, len(r.health))
	for _, h := range r.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// candidates builds the ordered candidate list: priority order, filtered to
// providers that are both available and not currently under penalty.
func (r *Router) candidates(ctx context.Context) []provider.Provider {
	r.mu.RLock()
	ordered := make([]provider.Provider, len(r.providers))
	copy(ordered, r.providers)
	r.mu.RUnlock()

	available := probeAvailability(ctx, ordered)

	result := make([]provider.Provider, 0, len(ordered))
	for _, p := range ordered {
		if !available[p.Name()] {
			continue
		}
		if r.underPenalty(p.Name()) {
			continue
		}
		result = append(result, p)
	}
	return result
}

func (r *Router) underPenalty(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, ok := r.penalties[name]
	if !ok {
		return false
	}
	return time.Now().Before(until)
}

func (r *Router) penalize(name string) {
	cooldown := r.cfg.ProviderCooldownMs
	if cooldown <= 0 {
		cooldown = 60_000
	}
	r.mu.Lock()
	r.penalties[name] = time.Now().Add(time.Duration(cooldown) * time.Millisecond)
	r.mu.Unlock()
}

func (r *Router) clearPenalty(name string) {
	r.mu.Lock()
	delete(r.penalties, name)
	r.mu.Unlock()
}

// Destroy stops the background health loop idempotently.
func (r *Router) Destroy() {
	r.stopHealthLoop()
}
