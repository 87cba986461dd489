package tools

import (
	"context"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ResolveMonitoredTools lists the registered assistants with a live count of
// their unpatched records.
func ResolveMonitoredTools(ctx context.Context, s store.Store) ([]map[string]interface{}, error) {
	registered, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(registered))
	for _, tool := range registered {
		open, err := countOpen(ctx, s, tool.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"name":                     tool.Name,
			"display_name":             tool.DisplayName,
			"vendor":                   tool.Vendor,
			"category":                 tool.Category,
			"keywords":                 tool.Keywords,
			"current_version":          tool.CurrentVersion,
			"total_vulnerabilities":    tool.TotalVulnerabilities,
			"critical_vulnerabilities": tool.CriticalVulnerabilities,
			"last_vulnerability_date":  tool.LastVulnerabilityDate,
			"open_vulnerabilities":     open,
		})
	}
	return out, nil
}

func countOpen(ctx context.Context, s store.Store, tool string) (int, error) {
	vulns, err := s.ListVulnerabilities(ctx, store.VulnerabilityFilter{Tool: tool})
	if err != nil {
		return 0, err
	}
	open := 0
	for _, v := range vulns {
		if v.PatchStatus != model.PatchStatusPatched {
			open++
		}
	}
	return open, nil
}
