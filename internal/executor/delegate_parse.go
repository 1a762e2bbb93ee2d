package executor

import (
	"regexp"
	"strings"
)

var directivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)DELEGATE TO\s+([a-zA-Z0-9_-]+)\s*:\s*(.+)`),
	regexp.MustCompile(`(?i)@([a-zA-Z0-9_-]+)\s+(.+)`),
	regexp.MustCompile(`(?i)Please ask\s+([a-zA-Z0-9_-]+)\s+to\s+(.+)`),
	regexp.MustCompile(`(?i)I need\s+([a-zA-Z0-9_-]+)\s+to\s+(.+)`),
	regexp.MustCompile(`請\s*([a-zA-Z0-9_-]+)\s*(.+)`),
}

// ParseDirectives scans content for delegation directives, producing an
// ordered list preserving first occurrence, per SPEC_FULL.md §4.2.
func ParseDirectives(content string) []DelegationRequest {
	lines := strings.Split(content, "\n")

	var requests []DelegationRequest
	var current *DelegationRequest
	var taskLines []string

	flush := func() {
		if current != nil {
			current.Task = strings.TrimSpace(strings.Join(taskLines, "\n"))
			requests = append(requests, *current)
		}
		current = nil
		taskLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		if name, task, ok := matchDirective(trimmed); ok {
			flush()
			current = &DelegationRequest{ToAgent: name}
			taskLines = []string{task}
			continue
		}

		if current != nil {
			taskLines = append(taskLines, trimmed)
		}
	}
	flush()

	return requests
}

func matchDirective(line string) (name, task string, ok bool) {
	for _, re := range directivePatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		return m[1], strings.TrimSpace(m[2]), true
	}
	return "", "", false
}
