package providerouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"automatosx/internal/provider"
)

// cronScheduler wraps a robfig/cron/v3 scheduler so Router.Destroy can stop
// it idempotently, per SPEC_FULL.md §4.1.2.
type cronScheduler struct {
	c        *cron.Cron
	stopOnce sync.Once
}

// startHealthLoop wires the background health-check loop. It is a no-op when
// HealthCheckInterval is zero and no HealthCheckCron expression is set.
func (r *Router) startHealthLoop() {
	spec := r.cfg.HealthCheckCron
	if spec == "" {
		if r.cfg.HealthCheckInterval <= 0 {
			return
		}
		spec = fmt.Sprintf("@every %s", r.cfg.HealthCheckInterval)
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		r.runHealthChecks(context.Background())
	})
	if err != nil {
		r.log.Error().Err(err).Str("spec", spec).Msg("invalid health check schedule, health loop disabled")
		return
	}
	c.Start()
	r.cronScheduler = &cronScheduler{c: c}
}

// stopHealthLoop stops the cron scheduler idempotently.
func (r *Router) stopHealthLoop() {
	if r.cronScheduler == nil {
		return
	}
	r.cronScheduler.stopOnce.Do(func() {
		ctx := r.cronScheduler.c.Stop()
		<-ctx.Done()
	})
}

// runHealthChecks probes every provider once, recording latency and
// consecutive-failure counts. A single provider's check panicking or
// erroring never aborts the others' checks, matching SPEC_FULL.md §4.1
// "Exceptions from a single probe never propagate; they are logged."
func (r *Router) runHealthChecks(ctx context.Context) {
	r.mu.RLock()
	snapshot := make([]provider.Provider, len(r.providers))
	for i, p := range r.providers {
		snapshot[i] = p
	}
	r.mu.RUnlock()

	for _, p := range snapshot {
		r.checkOne(ctx, p)
	}
}

func (r *Router) checkOne(ctx context.Context, p provider.Provider) {
	start := time.Now()
	available := safeIsAvailable(ctx, p)
	latency := time.Since(start).Milliseconds()

	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.health[p.Name()]
	failures := prev.ConsecutiveFailures
	if available {
		failures = 0
	} else {
		failures++
	}
	r.health[p.Name()] = HealthStatus{
		Provider:            p.Name(),
		Available:           available,
		LatencyMs:           latency,
		ConsecutiveFailures: failures,
		LastChecked:         time.Now(),
	}
}
