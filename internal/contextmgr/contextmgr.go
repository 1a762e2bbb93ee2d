// Package contextmgr assembles per-run ExecutionContexts from an agent
// profile, its abilities, relevant memory hits, and a provider handle,
// grounded in the reference stack's internal/context manager-composition
// pattern (constructor wires already-built collaborators, no back-references
// per the construction order in SPEC_FULL.md §4.6.2).
package contextmgr

import (
	"context"
	"strings"

	"automatosx/internal/ability"
	"automatosx/internal/apperr"
	"automatosx/internal/profile"
	"automatosx/internal/provider"
)

// MemoryHit is a single retrieved memory entry relevant to a task.
type MemoryHit struct {
	Content        string
	RelevancePercent int // 0 when unknown
}

// MemorySearcher is the subset of the Memory Manager the ContextManager
// depends on.
type MemorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]MemoryHit, error)
}

// ProviderSelector is the subset of the Provider Router the ContextManager
// depends on.
type ProviderSelector interface {
	SelectProvider(ctx context.Context) (provider.Provider, error)
}

// Orchestration carries delegation metadata assembled for an ExecutionContext.
type Orchestration struct {
	AvailableAgents    []string
	DelegationChain    []string
	SharedWorkspace    string
	MaxDelegationDepth int
}

// ExecutionContext is constructed per call; single-use and immutable once
// handed to the Executor.
type ExecutionContext struct {
	Profile       *profile.AgentProfile
	Task          string
	AbilitiesText string
	MemoryHits    []MemoryHit
	Provider      provider.Provider
	Orchestration Orchestration
	SessionID     string
	SharedData    map[string]any
}

// Options configures createContext.
type Options struct {
	SessionID       string
	DelegationChain []string
	SharedData      map[string]any
}

const memoryTopK = 5

// Manager assembles ExecutionContexts.
type Manager struct {
	profiles  *profile.Loader
	abilities *ability.Manager
	memory    MemorySearcher
	providers ProviderSelector
	agents    func() []string // available agent names, injected to avoid a loader->manager cycle
}

// New creates a ContextManager over its already-constructed collaborators.
func New(profiles *profile.Loader, abilities *ability.Manager, memory MemorySearcher, providers ProviderSelector, listAgents func() []string) *Manager {
	return &Manager{
		profiles:  profiles,
		abilities: abilities,
		memory:    memory,
		providers: providers,
		agents:    listAgents,
	}
}

// CreateContext loads the named agent's profile, assembles its abilities
// text, retrieves relevant memory hits, and assigns a provider handle.
func (m *Manager) CreateContext(ctx context.Context, agentName, task string, opts Options) (*ExecutionContext, error) {
	p, err := m.profiles.Load(agentName)
	if err != nil {
		return nil, err
	}

	abilitiesText, err := m.assembleAbilities(p.Abilities)
	if err != nil {
		return nil, err
	}

	var hits []MemoryHit
	if m.memory != nil {
		hits, err = m.memory.Search(ctx, task, memoryTopK)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeQueryError, "retrieve memory context", err)
		}
	}

	var selected provider.Provider
	if m.providers != nil {
		selected, err = m.providers.SelectProvider(ctx)
		if err != nil {
			return nil, err
		}
	}

	var available []string
	if m.agents != nil {
		available = m.agents()
	}

	return &ExecutionContext{
		Profile:       p,
		Task:          task,
		AbilitiesText: abilitiesText,
		MemoryHits:    hits,
		Provider:      selected,
		SessionID:     opts.SessionID,
		SharedData:    opts.SharedData,
		Orchestration: Orchestration{
			AvailableAgents:    available,
			DelegationChain:    opts.DelegationChain,
			MaxDelegationDepth: p.MaxDelegationDepth(),
		},
	}, nil
}

func (m *Manager) assembleAbilities(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, name := range names {
		doc, err := m.abilities.Get(name)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(doc.Content)
	}
	return b.String(), nil
}
