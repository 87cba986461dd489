// Package store owns durable persistence of vulnerabilities, tools, alerts,
// and collector checkpoints. The pipeline treats the store as the single
// source of truth for record identity.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// ErrConflict marks a concurrent merge collision on the same identity. The
// pipeline retries the merge once immediately, then defers to the next cycle.
var ErrConflict = errors.New("store: write conflict")

// ErrUnavailable marks a store outage. The scheduler pauses the source and
// resumes once a health probe succeeds.
var ErrUnavailable = errors.New("store: unavailable")

// VulnerabilityFilter narrows list queries on the read surface.
type VulnerabilityFilter struct {
	Severity model.Severity
	Tool     string
	Since    *time.Time
	Limit    int
}

// Stats summarizes the database for the dashboard read path.
type Stats struct {
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"by_severity"`
	ExploitedIn int            `json:"exploited_in_wild"`
	Unpatched   int            `json:"unpatched"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}

// Store is the persistence contract consumed by the pipeline and the read
// surface. Implementations must make Upsert+AppendAlert atomic when invoked
// through UpsertWithAlerts.
type Store interface {
	// FindByCVE returns the canonical record carrying cveID, or nil when no
	// record exists.
	FindByCVE(ctx context.Context, cveID string) (*model.Vulnerability, error)

	// FindByVulnID returns the canonical record for a vulnerability_id, or nil.
	FindByVulnID(ctx context.Context, vulnID string) (*model.Vulnerability, error)

	// FindCandidates returns records that share at least one affected tool and
	// whose discovery date falls inside [from, to]. Used for fuzzy matching of
	// drafts without a cve_id.
	FindCandidates(ctx context.Context, tools []string, from, to time.Time) ([]*model.Vulnerability, error)

	// Upsert writes a canonical record keyed by vulnerability_id.
	Upsert(ctx context.Context, v *model.Vulnerability) error

	// UpsertWithAlerts persists the record and appends the given alerts as one
	// atomic operation: all writes succeed or none do.
	UpsertWithAlerts(ctx context.Context, v *model.Vulnerability, alerts []*model.Alert) error

	// AppendAlert persists a single alert.
	AppendAlert(ctx context.Context, a *model.Alert) error

	// UpdateAlertStatus moves an alert to the given lifecycle state.
	UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus) error

	// CountRecentAlerts counts alerts for a vulnerability created at or after
	// the cutoff. Backs the dispatcher's rolling rate-limit window.
	CountRecentAlerts(ctx context.Context, vulnID string, cutoff time.Time) (int, error)

	// RecentAlerts returns the newest alerts, most recent first.
	RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error)

	// ListVulnerabilities returns records matching the filter, newest first.
	ListVulnerabilities(ctx context.Context, f VulnerabilityFilter) ([]*model.Vulnerability, error)

	// Stats returns dashboard aggregates.
	Stats(ctx context.Context) (*Stats, error)

	// EnsureTools lazily registers tools on first reference.
	EnsureTools(ctx context.Context, tools []*model.Tool) error

	// ListTools returns all registered tools.
	ListTools(ctx context.Context) ([]*model.Tool, error)

	// LoadCheckpoint returns the last successful `since` cursor for a source,
	// or nil when the source has never completed a cycle.
	LoadCheckpoint(ctx context.Context, source string) (*time.Time, error)

	// SaveCheckpoint persists the `since` cursor for a source.
	SaveCheckpoint(ctx context.Context, source string, since time.Time) error

	// Ping probes store health.
	Ping(ctx context.Context) error
}
