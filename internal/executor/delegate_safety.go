package executor

import (
	"fmt"

	"automatosx/internal/apperr"
)

// ProfileDepthLookup is the subset of internal/profile.Loader the safety
// check needs: the initiator's configured maxDelegationDepth.
type ProfileDepthLookup interface {
	MaxDelegationDepthOf(agentName string) (int, error)
}

// SessionJoiner is the subset of internal/session.Manager delegation safety
// depends on.
type SessionJoiner interface {
	JoinOrCreate(sessionID, initiator string) (string, error)
	AddAgent(sessionID, agentName string) error
}

// checkDelegationSafety runs the pre-dispatch checks from SPEC_FULL.md §4.2
// "Delegation safety" steps 1-4.
func checkDelegationSafety(profiles ProfileDepthLookup, sessions SessionJoiner, req DelegationRequest) (sessionID string, err error) {
	initiator := req.FromAgent
	if len(req.DelegationChain) > 0 {
		initiator = req.DelegationChain[0]
	}

	maxDepth, err := profiles.MaxDelegationDepthOf(initiator)
	if err != nil {
		return "", err
	}
	if len(req.DelegationChain) >= maxDepth {
		return "", apperr.New(apperr.CodeMaxDepthExceeded, fmt.Sprintf("delegation chain depth %d reached max %d for initiator %q", len(req.DelegationChain), maxDepth, initiator))
	}

	for _, name := range req.DelegationChain {
		if name == req.ToAgent {
			return "", apperr.New(apperr.CodeDelegationCycle, fmt.Sprintf("agent %q already appears in delegation chain", req.ToAgent))
		}
	}

	// Step 3: permission whitelists (profile.Orchestration.CanDelegateTo) are
	// deprecated — logged by the caller, never enforced here.

	if sessions != nil {
		joined, err := sessions.JoinOrCreate(req.SessionID, initiator)
		if err != nil {
			return "", err
		}
		if err := sessions.AddAgent(joined, req.ToAgent); err != nil {
			return "", err
		}
		sessionID = joined
	}

	return sessionID, nil
}

// nextChain returns the delegation chain a sub-delegation inherits:
// parent.chain ∪ {fromAgent}.
func nextChain(parentChain []string, fromAgent string) []string {
	next := make([]string, len(parentChain), len(parentChain)+1)
	copy(next, parentChain)
	return append(next, fromAgent)
}
