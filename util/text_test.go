package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCVEID(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Fixes CVE-2025-54132 in the MCP handler", "CVE-2025-54132"},
		{"fixes cve-2025-54132", "CVE-2025-54132"},
		{"CVE-2021-4428745 long form", "CVE-2021-4428745"},
		{"CVE-2025-54132 and CVE-2025-99999", "CVE-2025-54132"},
		{"no identifier here", ""},
		{"CVE-25-123 malformed", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractCVEID(tt.text), tt.text)
	}
}

func TestTitleTokens(t *testing.T) {
	got := TitleTokens("The Remote Code Execution vulnerability in Cursor via MCP")
	assert.Equal(t, []string{"remote", "code", "execution", "cursor", "mcp"}, got)
}

func TestTitleTokensDeduplicates(t *testing.T) {
	got := TitleTokens("copilot copilot COPILOT")
	assert.Equal(t, []string{"copilot"}, got)
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"remote", "code", "execution", "cursor"}
	b := []string{"remote", "code", "execution", "cursor", "mcp"}
	assert.InDelta(t, 0.8, JaccardSimilarity(a, b), 1e-9)

	assert.Equal(t, 1.0, JaccardSimilarity(a, a))
	assert.Equal(t, 0.0, JaccardSimilarity(a, []string{"tabnine", "update"}))
	assert.Equal(t, 0.0, JaccardSimilarity(nil, a))
	assert.Equal(t, 0.0, JaccardSimilarity(nil, nil))
}

func TestCalculateCVSSScore(t *testing.T) {
	assert.Equal(t, 8.8, CalculateCVSSScore("CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:U/C:H/I:H/A:H"))
	assert.Equal(t, 0.0, CalculateCVSSScore(""))
	assert.Equal(t, 0.0, CalculateCVSSScore("AV:N/AC:L"))
	assert.Equal(t, 0.0, CalculateCVSSScore("CVSS:3.1/garbage"))
}
