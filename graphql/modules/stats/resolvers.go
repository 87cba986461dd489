package stats

import (
	"context"
	"strings"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ResolveOverview aggregates the top-line figures for the dashboard.
func ResolveOverview(ctx context.Context, s store.Store) (map[string]interface{}, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	bySeverity := map[string]interface{}{}
	for severity, count := range stats.BySeverity {
		bySeverity[strings.ToLower(severity)] = count
	}
	return map[string]interface{}{
		"total_vulnerabilities": stats.Total,
		"by_severity":           bySeverity,
		"exploited_in_wild":     stats.ExploitedIn,
		"unpatched":             stats.Unpatched,
		"last_updated":          stats.LastUpdated,
	}, nil
}

// ResolveRecentAlerts returns the newest alerts.
func ResolveRecentAlerts(ctx context.Context, s store.Store, limit int) ([]*model.Alert, error) {
	return s.RecentAlerts(ctx, limit)
}
