package vulnerabilities

import (
	"context"
	"time"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ResolveVulnerabilities fetches records matching the optional filters,
// newest first.
func ResolveVulnerabilities(ctx context.Context, s store.Store, severity, tool string, sinceHours, limit int) ([]*model.Vulnerability, error) {
	f := store.VulnerabilityFilter{
		Severity: model.Severity(severity),
		Tool:     tool,
		Limit:    limit,
	}
	if sinceHours > 0 {
		since := time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)
		f.Since = &since
	}
	return s.ListVulnerabilities(ctx, f)
}

// ResolveVulnerability fetches a single record by its canonical ID.
func ResolveVulnerability(ctx context.Context, s store.Store, id string) (*model.Vulnerability, error) {
	return s.FindByVulnID(ctx, id)
}
