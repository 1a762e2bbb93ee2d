package stage

import (
	"fmt"
	"strings"

	"automatosx/internal/profile"
)

// buildStageTask synthesizes the task text handed to the agent for one
// stage: a header naming the stage, its description, the original task,
// and the optional key-questions / expected-output sections, in that
// order. The key-questions and expected-output sections are omitted when
// empty; the description section is always emitted.
func buildStageTask(s profile.Stage, originalTask string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stage: %s\n\n", s.Name)
	b.WriteString("## Stage Description\n\n")
	b.WriteString(s.Description)
	b.WriteString("\n\n## Original Task\n\n")
	b.WriteString(originalTask)

	if len(s.KeyQuestions) > 0 {
		b.WriteString("\n\n## Key Questions to Address\n\n")
		for _, q := range s.KeyQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	if s.ExpectedOutput != "" {
		b.WriteString("\n## Expected Outputs\n\n")
		b.WriteString(s.ExpectedOutput)
	}

	return strings.TrimRight(b.String(), "\n")
}
