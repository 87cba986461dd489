package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickdeaconx/kirinvulndb/internal/config"
)

func newMatcher(t *testing.T) *ToolMatcher {
	t.Helper()
	specs, err := config.LoadToolRegistry("does-not-exist.yaml")
	require.NoError(t, err)
	return NewToolMatcher(specs)
}

func TestMatcherMatchesToolKeywords(t *testing.T) {
	m := newMatcher(t)

	tools := m.Match("Remote code execution in Cursor IDE via MCP configuration")
	assert.Equal(t, []string{"cursor"}, tools)

	tools = m.Match("GitHub Copilot and Tabnine both affected")
	assert.Contains(t, tools, "github_copilot")
	assert.Contains(t, tools, "tabnine")
}

func TestMatcherIsCaseInsensitive(t *testing.T) {
	m := newMatcher(t)
	assert.Equal(t, []string{"cursor"}, m.Match("CURSOR IDE UPDATE"))
}

func TestMatcherNoHit(t *testing.T) {
	m := newMatcher(t)
	assert.Empty(t, m.Match("Buffer overflow in a legacy FTP daemon"))
}

func TestRelevantFallsBackToContextKeywords(t *testing.T) {
	m := newMatcher(t)

	assert.True(t, m.Relevant("Cursor IDE vulnerability"), "tool keyword")
	assert.True(t, m.Relevant("Prompt injection against an unnamed AI assistant"), "context keyword")
	assert.False(t, m.Relevant("Buffer overflow in a legacy FTP daemon"))
}
