package stage

import (
	"fmt"

	"automatosx/internal/apperr"
)

func errNoStages(agentName string) error {
	return apperr.New(apperr.CodeNoStages, fmt.Sprintf("agent %q has no stages to run", agentName)).
		WithSuggestion("add a stages[] block to the agent profile before running it as a staged workflow")
}

func errDuplicateStageName(agentName, stageName string) error {
	return apperr.New(apperr.CodeDuplicateStageName, fmt.Sprintf("stage name %q appears more than once in agent %q", stageName, agentName))
}

func errCheckpointNotFound(runID string) error {
	return apperr.New(apperr.CodeCheckpointNotFound, fmt.Sprintf("no checkpoint found for run %q", runID))
}

func errCheckpointCorrupt(runID string, cause error) error {
	return apperr.Wrap(apperr.CodeCheckpointCorrupt, fmt.Sprintf("checkpoint for run %q is corrupt", runID), cause)
}

func errSchemaIncompatible(runID, version string) error {
	return apperr.New(apperr.CodeCheckpointCorrupt, fmt.Sprintf("checkpoint %q has schemaVersion %q, does not satisfy %s", runID, version, schemaConstraint))
}
