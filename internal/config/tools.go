package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ToolSpec describes one monitored AI coding assistant in the registry seed
// file. Keywords feed adapter-side relevance matching.
type ToolSpec struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Vendor      string   `yaml:"vendor"`
	Category    string   `yaml:"category"`
	Keywords    []string `yaml:"keywords"`
}

// defaultTools is the built-in registry used when no seed file is present.
var defaultTools = []ToolSpec{
	{Name: "cursor", DisplayName: "Cursor", Vendor: "Anysphere", Category: "ide", Keywords: []string{"cursor", "cursor.ai", "cursor ide"}},
	{Name: "github_copilot", DisplayName: "GitHub Copilot", Vendor: "GitHub", Category: "assistant", Keywords: []string{"github copilot", "copilot", "github.copilot"}},
	{Name: "amazon_codewhisperer", DisplayName: "Amazon CodeWhisperer", Vendor: "Amazon", Category: "assistant", Keywords: []string{"codewhisperer", "amazon codewhisperer", "aws codewhisperer"}},
	{Name: "tabnine", DisplayName: "Tabnine", Vendor: "Tabnine", Category: "assistant", Keywords: []string{"tabnine", "tab nine"}},
	{Name: "codeium", DisplayName: "Codeium", Vendor: "Codeium", Category: "assistant", Keywords: []string{"codeium"}},
	{Name: "replit_ghostwriter", DisplayName: "Replit Ghostwriter", Vendor: "Replit", Category: "assistant", Keywords: []string{"replit", "ghostwriter", "replit ghostwriter"}},
	{Name: "sourcegraph_cody", DisplayName: "Sourcegraph Cody", Vendor: "Sourcegraph", Category: "assistant", Keywords: []string{"sourcegraph", "cody"}},
	{Name: "jetbrains_ai_assistant", DisplayName: "JetBrains AI Assistant", Vendor: "JetBrains", Category: "ide", Keywords: []string{"jetbrains", "intellij", "pycharm", "webstorm"}},
}

// LoadToolRegistry reads the YAML tool registry at path, falling back to the
// built-in defaults when the file does not exist.
func LoadToolRegistry(path string) ([]ToolSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultTools, nil
		}
		return nil, fmt.Errorf("failed to read tool registry %s: %w", path, err)
	}

	var reg struct {
		Tools []ToolSpec `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse tool registry %s: %w", path, err)
	}
	if len(reg.Tools) == 0 {
		return defaultTools, nil
	}
	return reg.Tools, nil
}
