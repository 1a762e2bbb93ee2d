package main

import (
	"context"
	"fmt"
	"strings"

	"automatosx/internal/ability"
	"automatosx/internal/cliprovider"
	"automatosx/internal/config"
	"automatosx/internal/contextmgr"
	"automatosx/internal/executor"
	"automatosx/internal/memory"
	"automatosx/internal/profile"
	"automatosx/internal/providerouter"
	"automatosx/internal/ratelimit"
	"automatosx/internal/session"
	"automatosx/internal/stage"
	"automatosx/internal/workspace"
	"automatosx/pkg/logger"

	"time"

	"automatosx/internal/provider"
)

// app holds every long-lived singleton, constructed in the order
// SPEC_FULL.md §4.6.2 mandates: Router -> Providers -> ProfileLoader /
// AbilitiesManager -> MemoryManager -> WorkspaceManager / SessionManager ->
// ContextManager -> Executor.
type app struct {
	layout   *config.Layout
	cfg      *config.Config
	router   *providerouter.Router
	profiles *profile.Loader
	skills   *ability.Manager
	mem      *memory.Manager
	ws       *workspace.Manager
	sessions *session.Manager
	contexts *contextmgr.Manager
	exec     *executor.Executor
	stages   *stage.Controller
	limiter  *ratelimit.Limiter
}

// memorySearchAdapter narrows *memory.Manager to the small interface
// contextmgr.Manager depends on, translating its BM25 ScoredEntry shape
// into contextmgr.MemoryHit.
type memorySearchAdapter struct {
	mem *memory.Manager
}

func (a memorySearchAdapter) Search(ctx context.Context, query string, limit int) ([]contextmgr.MemoryHit, error) {
	entries, err := a.mem.Search(ctx, memory.Query{Text: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	hits := make([]contextmgr.MemoryHit, len(entries))
	for i, e := range entries {
		hits[i] = contextmgr.MemoryHit{
			Content:          e.Content,
			RelevancePercent: int(e.Similarity * 100),
		}
	}
	return hits, nil
}

// buildProviders turns the decoded providers.* config map into concrete
// provider.Provider instances, one cliprovider.Provider per enabled entry.
func buildProviders(cfg *config.Config) []provider.Provider {
	var providers []provider.Provider
	for name, entry := range cfg.Providers {
		if !entry.Enabled {
			continue
		}
		parts := strings.Fields(entry.Command)
		if len(parts) == 0 {
			logger.Get().Warn().Str("provider", name).Msg("provider has no command configured, skipping")
			continue
		}
		providers = append(providers, cliprovider.New(cliprovider.Config{
			Name:     name,
			Command:  parts[0],
			Args:     parts[1:],
			Priority: entry.Priority,
		}))
	}
	return providers
}

// newApp wires every singleton against the project rooted at root, using
// the already-loaded cfg.
func newApp(root string, cfg *config.Config) (*app, error) {
	layout, err := config.NewLayout(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project layout: %w", err)
	}

	router := providerouter.New(providerouter.Config{
		FallbackEnabled:     true,
		ProviderCooldownMs:  30_000,
		HealthCheckInterval: 30 * time.Second,
	}, buildProviders(cfg))

	profiles := profile.NewLoader(layout.AgentsDir())
	skills := ability.NewManager(layout.AbilitiesDir())

	memCfg := memory.DefaultConfig(layout.MemoryDBPath())
	if cfg.Memory.MaxEntries > 0 {
		memCfg.MaxEntries = cfg.Memory.MaxEntries
	}
	mem, err := memory.Open(memCfg)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	ws := workspace.New(layout.WorkspacesDir(), layout.PRDDir(), layout.TmpDir())

	sessCfg := session.DefaultConfig()
	sessCfg.FilePath = layout.SessionsFilePath()
	if cfg.Session.MaxSessions > 0 {
		sessCfg.MaxSessions = cfg.Session.MaxSessions
	}
	sessions, err := session.New(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	listAgents := func() []string {
		all, err := profiles.LoadAll()
		if err != nil {
			logger.Get().Warn().Err(err).Msg("list agents for delegation context failed")
			return nil
		}
		names := make([]string, len(all))
		for i, p := range all {
			names[i] = p.Name
		}
		return names
	}
	contexts := contextmgr.New(profiles, skills, memorySearchAdapter{mem: mem}, router, listAgents)
	exec := executor.New(router, contexts, profiles, ws, sessions)

	stages := stage.New(stage.Config{CheckpointDir: layout.CheckpointsDir()}, contexts, exec, mem)

	limiter := ratelimit.New(ratelimit.Config{WindowMs: 60_000, MaxRequests: 60})

	return &app{
		layout:   layout,
		cfg:      cfg,
		router:   router,
		profiles: profiles,
		skills:   skills,
		mem:      mem,
		ws:       ws,
		sessions: sessions,
		contexts: contexts,
		exec:     exec,
		stages:   stages,
		limiter:  limiter,
	}, nil
}

func (a *app) Close() {
	if a.mem != nil {
		_ = a.mem.Close()
	}
	if a.sessions != nil {
		_ = a.sessions.Destroy()
	}
	if a.router != nil {
		a.router.Destroy()
	}
}
