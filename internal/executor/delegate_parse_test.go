package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectivesAllForms(t *testing.T) {
	content := `DELEGATE TO backend-dev: implement the API

@reviewer check the diff

Please ask qa-agent to run the suite

I need docs-writer to update the README
`
	reqs := ParseDirectives(content)
	require.Len(t, reqs, 4)
	assert.Equal(t, "backend-dev", reqs[0].ToAgent)
	assert.Equal(t, "implement the API", reqs[0].Task)
	assert.Equal(t, "reviewer", reqs[1].ToAgent)
	assert.Equal(t, "qa-agent", reqs[2].ToAgent)
	assert.Equal(t, "docs-writer", reqs[3].ToAgent)
}

func TestParseDirectivesPreservesOrder(t *testing.T) {
	content := "@second do B\n\n@first do A\n"
	reqs := ParseDirectives(content)
	require.Len(t, reqs, 2)
	assert.Equal(t, "second", reqs[0].ToAgent)
	assert.Equal(t, "first", reqs[1].ToAgent)
}

func TestParseDirectivesTaskSpansToBlankLine(t *testing.T) {
	content := "DELEGATE TO helper: do this\nand also this\n\nunrelated text"
	reqs := ParseDirectives(content)
	require.Len(t, reqs, 1)
	assert.Equal(t, "do this\nand also this", reqs[0].Task)
}

func TestParseDirectivesNoMatches(t *testing.T) {
	reqs := ParseDirectives("just a plain response with no directives")
	assert.Empty(t, reqs)
}
