package executor

import (
	"fmt"
	"strings"

	"automatosx/internal/contextmgr"
)

const maxListedAgents = 10

// AssemblePrompt is a pure function of an ExecutionContext, producing a
// single text prompt by concatenating only the sections that have content,
// grounded in the reference stack's sectioned SystemPromptBuilder.Build
// (internal/prompt/builder.go) pattern of "render and append only if
// non-empty" rather than always emitting a fixed template.
func AssemblePrompt(ec *contextmgr.ExecutionContext) string {
	var sections []string

	if ec.AbilitiesText != "" {
		sections = append(sections, "## Your Abilities\n\n"+ec.AbilitiesText)
	}

	if len(ec.Profile.Stages) > 0 {
		sections = append(sections, buildStagesSection(ec))
	}

	if len(ec.MemoryHits) > 0 {
		sections = append(sections, buildMemorySection(ec))
	}

	if len(ec.Orchestration.AvailableAgents) > 0 || len(ec.Orchestration.DelegationChain) > 0 {
		sections = append(sections, buildOrchestrationSection(ec))
	}

	sections = append(sections, "## Task\n\n"+ec.Task)

	return strings.Join(sections, "\n\n")
}

func buildStagesSection(ec *contextmgr.ExecutionContext) string {
	var b strings.Builder
	b.WriteString("## Your Workflow Stages\n\n")
	for i, s := range ec.Profile.Stages {
		fmt.Fprintf(&b, "%d. **%s** — %s\n", i+1, s.Name, s.Description)
		for _, q := range s.KeyQuestions {
			fmt.Fprintf(&b, "   - %s\n", q)
		}
		if s.ExpectedOutput != "" {
			fmt.Fprintf(&b, "   Expected output: %s\n", s.ExpectedOutput)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildMemorySection(ec *contextmgr.ExecutionContext) string {
	var b strings.Builder
	b.WriteString("## Relevant Context from Memory\n\n")
	for _, hit := range ec.MemoryHits {
		if hit.RelevancePercent > 0 {
			fmt.Fprintf(&b, "- (%d%% relevant) %s\n", hit.RelevancePercent, hit.Content)
		} else {
			fmt.Fprintf(&b, "- %s\n", hit.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildOrchestrationSection(ec *contextmgr.ExecutionContext) string {
	var b strings.Builder
	b.WriteString("## Multi-Agent Orchestration Capabilities\n\n")
	b.WriteString("Evaluate whether this task is better handled by delegating to another agent before acting yourself.\n\n")

	agents := ec.Orchestration.AvailableAgents
	if len(agents) > 0 {
		shown := agents
		suffix := ""
		if len(agents) > maxListedAgents {
			shown = agents[:maxListedAgents]
			suffix = fmt.Sprintf(" …and %d more", len(agents)-maxListedAgents)
		}
		fmt.Fprintf(&b, "Available agents: %s%s\n", strings.Join(shown, ", "), suffix)
	}

	if ec.SessionID != "" {
		fmt.Fprintf(&b, "Current session: %s\n", ec.SessionID)
	}
	if len(ec.Orchestration.DelegationChain) > 0 {
		fmt.Fprintf(&b, "Delegation chain so far: %s\n", strings.Join(ec.Orchestration.DelegationChain, " -> "))
	}
	fmt.Fprintf(&b, "Current depth: %d / max %d\n\n", len(ec.Orchestration.DelegationChain), ec.Orchestration.MaxDelegationDepth)

	b.WriteString("To delegate, use one of:\n")
	b.WriteString("- `DELEGATE TO <name>: <task>`\n")
	b.WriteString("- `@<name> <task>`\n")
	b.WriteString("- `Please ask <name> to <task>`\n")
	b.WriteString("- `I need <name> to <task>`\n")

	return strings.TrimRight(b.String(), "\n")
}
