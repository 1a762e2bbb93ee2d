package providerouter

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"automatosx/internal/provider"
)

// probeAvailability calls IsAvailable on every provider concurrently, per
// SPEC_FULL.md §4.1.2. A single provider's probe failing (or panicking via a
// recovered IsAvailable implementation) never aborts the others — each
// result is captured independently rather than propagated as a group error.
func probeAvailability(ctx context.Context, providers []provider.Provider) map[string]bool {
	results := make(map[string]bool, len(providers))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, p := range providers {
		p := p
		g.Go(func() error {
			available := safeIsAvailable(gctx, p)
			mu.Lock()
			results[p.Name()] = available
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // the goroutines above never return an error; nil always

	return results
}

func safeIsAvailable(ctx context.Context, p provider.Provider) (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()
	return p.IsAvailable(ctx)
}
