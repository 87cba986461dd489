package collector

import (
	"strings"

	"github.com/rickdeaconx/kirinvulndb/internal/config"
)

// aiContextKeywords widen relevance beyond the named tools: an advisory
// mentioning any of these is worth keeping even before a tool keyword hits.
var aiContextKeywords = []string{
	"ai code",
	"ai coding",
	"ai assistant",
	"code completion",
	"code generation",
	"copilot",
	"llm",
	"large language model",
	"prompt injection",
	"ai-powered",
	"machine learning model",
}

// ToolMatcher maps free text from advisories onto the monitored tool names
// via each tool's keyword list.
type ToolMatcher struct {
	specs []config.ToolSpec
}

func NewToolMatcher(specs []config.ToolSpec) *ToolMatcher {
	return &ToolMatcher{specs: specs}
}

// Match returns the canonical names of every monitored tool whose keywords
// appear in the text. The order follows the registry, so results are stable.
func (m *ToolMatcher) Match(text string) []string {
	lower := strings.ToLower(text)
	var tools []string
	for _, spec := range m.specs {
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				tools = append(tools, spec.Name)
				break
			}
		}
	}
	return tools
}

// Relevant reports whether the text concerns the AI coding assistant space at
// all: either a monitored tool keyword or a broader AI context keyword hits.
func (m *ToolMatcher) Relevant(text string) bool {
	if len(m.Match(text)) > 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range aiContextKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
