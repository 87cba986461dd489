package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/arangodb/shared"

	"github.com/rickdeaconx/kirinvulndb/database"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ArangoStore implements Store on top of the ArangoDB collections created by
// the database package.
type ArangoStore struct {
	db database.DBConnection
}

// NewArangoStore wraps an initialized database connection.
func NewArangoStore(db database.DBConnection) *ArangoStore {
	return &ArangoStore{db: db}
}

func isUniqueViolation(err error) bool {
	var ae shared.ArangoError
	if errors.As(err, &ae) {
		// 1200 = write-write conflict, 1210 = unique constraint violation
		return ae.ErrorNum == 1200 || ae.ErrorNum == 1210
	}
	return false
}

func (s *ArangoStore) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func (s *ArangoStore) queryOne(ctx context.Context, query string, bindVars map[string]interface{}, out interface{}) (bool, error) {
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return false, err
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return false, nil
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ArangoStore) queryAllVulns(ctx context.Context, query string, bindVars map[string]interface{}) ([]*model.Vulnerability, error) {
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []*model.Vulnerability
	for cursor.HasMore() {
		var v model.Vulnerability
		if _, err := cursor.ReadDocument(ctx, &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}

// FindByCVE looks up a canonical record by its external CVE identifier.
func (s *ArangoStore) FindByCVE(ctx context.Context, cveID string) (*model.Vulnerability, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.cve_id == @cve_id
			LIMIT 1
			RETURN v
	`
	var v model.Vulnerability
	found, err := s.queryOne(ctx, query, map[string]interface{}{"cve_id": cveID}, &v)
	if err != nil {
		return nil, s.wrapErr("find by cve", err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

// FindByVulnID looks up a canonical record by its internal identity.
func (s *ArangoStore) FindByVulnID(ctx context.Context, vulnID string) (*model.Vulnerability, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.vulnerability_id == @vuln_id
			LIMIT 1
			RETURN v
	`
	var v model.Vulnerability
	found, err := s.queryOne(ctx, query, map[string]interface{}{"vuln_id": vulnID}, &v)
	if err != nil {
		return nil, s.wrapErr("find by vulnerability_id", err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

// FindCandidates returns fuzzy-match candidates: records sharing any affected
// tool with a discovery date inside the window, oldest created_at first so the
// merger's tie-break is stable.
func (s *ArangoStore) FindCandidates(ctx context.Context, tools []string, from, to time.Time) ([]*model.Vulnerability, error) {
	query := `
		FOR v IN vulnerability
			FILTER LENGTH(INTERSECTION(v.affected_tools, @tools)) > 0
			FILTER v.discovery_date >= @from AND v.discovery_date <= @to
			SORT v.created_at ASC
			LIMIT 50
			RETURN v
	`
	bindVars := map[string]interface{}{
		"tools": tools,
		"from":  from,
		"to":    to,
	}
	out, err := s.queryAllVulns(ctx, query, bindVars)
	if err != nil {
		return nil, s.wrapErr("find candidates", err)
	}
	return out, nil
}

// Upsert writes a canonical record keyed by vulnerability_id.
func (s *ArangoStore) Upsert(ctx context.Context, v *model.Vulnerability) error {
	query := `
		UPSERT { vulnerability_id: @vuln_id }
			INSERT @doc
			REPLACE @doc
		IN vulnerability
	`
	bindVars := map[string]interface{}{
		"vuln_id": v.VulnerabilityID,
		"doc":     v,
	}
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return s.wrapErr("upsert vulnerability", err)
	}
	return cursor.Close()
}

// UpsertWithAlerts persists the record and its alerts in a single AQL query.
// A single query is one transaction in ArangoDB, which gives the caller the
// all-or-nothing guarantee for a merge outcome.
func (s *ArangoStore) UpsertWithAlerts(ctx context.Context, v *model.Vulnerability, alerts []*model.Alert) error {
	if len(alerts) == 0 {
		return s.Upsert(ctx, v)
	}
	query := `
		LET vuln = (
			UPSERT { vulnerability_id: @vuln_id }
				INSERT @doc
				REPLACE @doc
			IN vulnerability
			RETURN NEW
		)
		FOR a IN @alerts
			INSERT a IN alert
	`
	bindVars := map[string]interface{}{
		"vuln_id": v.VulnerabilityID,
		"doc":     v,
		"alerts":  alerts,
	}
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return s.wrapErr("upsert with alerts", err)
	}
	return cursor.Close()
}

// AppendAlert persists a single alert document.
func (s *ArangoStore) AppendAlert(ctx context.Context, a *model.Alert) error {
	_, err := s.db.Collections["alert"].CreateDocument(ctx, a)
	return s.wrapErr("append alert", err)
}

// UpdateAlertStatus moves an alert to a new lifecycle state.
func (s *ArangoStore) UpdateAlertStatus(ctx context.Context, alertID string, status model.AlertStatus) error {
	query := `
		FOR a IN alert
			FILTER a.alert_id == @alert_id
			UPDATE a WITH { status: @status, updated_at: @now } IN alert
	`
	bindVars := map[string]interface{}{
		"alert_id": alertID,
		"status":   status,
		"now":      time.Now().UTC(),
	}
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return s.wrapErr("update alert status", err)
	}
	return cursor.Close()
}

// CountRecentAlerts counts alerts for a vulnerability created at or after the
// cutoff, backing the dispatcher's rolling rate-limit window.
func (s *ArangoStore) CountRecentAlerts(ctx context.Context, vulnID string, cutoff time.Time) (int, error) {
	query := `
		RETURN LENGTH(
			FOR a IN alert
				FILTER a.vulnerability_id == @vuln_id AND a.created_at >= @cutoff
				RETURN 1
		)
	`
	bindVars := map[string]interface{}{
		"vuln_id": vulnID,
		"cutoff":  cutoff,
	}
	var count int
	if _, err := s.queryOne(ctx, query, bindVars, &count); err != nil {
		return 0, s.wrapErr("count recent alerts", err)
	}
	return count, nil
}

// RecentAlerts returns the newest alerts, most recent first.
func (s *ArangoStore) RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		FOR a IN alert
			SORT a.created_at DESC
			LIMIT @limit
			RETURN a
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"limit": limit},
	})
	if err != nil {
		return nil, s.wrapErr("recent alerts", err)
	}
	defer cursor.Close()

	var out []*model.Alert
	for cursor.HasMore() {
		var a model.Alert
		if _, err := cursor.ReadDocument(ctx, &a); err != nil {
			return nil, s.wrapErr("recent alerts", err)
		}
		out = append(out, &a)
	}
	return out, nil
}

// ListVulnerabilities returns records matching the filter, newest first.
func (s *ArangoStore) ListVulnerabilities(ctx context.Context, f VulnerabilityFilter) ([]*model.Vulnerability, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `
		FOR v IN vulnerability
			FILTER @severity == null OR v.severity == @severity
			FILTER @tool == null OR @tool IN v.affected_tools
			FILTER @since == null OR v.updated_at >= @since
			SORT v.updated_at DESC
			LIMIT @limit
			RETURN v
	`
	bindVars := map[string]interface{}{
		"severity": nil,
		"tool":     nil,
		"since":    nil,
		"limit":    limit,
	}
	if f.Severity != "" {
		bindVars["severity"] = f.Severity
	}
	if f.Tool != "" {
		bindVars["tool"] = f.Tool
	}
	if f.Since != nil {
		bindVars["since"] = *f.Since
	}
	out, err := s.queryAllVulns(ctx, query, bindVars)
	if err != nil {
		return nil, s.wrapErr("list vulnerabilities", err)
	}
	return out, nil
}

// Stats returns dashboard aggregates in a single pass.
func (s *ArangoStore) Stats(ctx context.Context) (*Stats, error) {
	query := `
		LET total = LENGTH(vulnerability)
		LET bySev = (
			FOR v IN vulnerability
				COLLECT sev = v.severity WITH COUNT INTO c
				RETURN { sev, c }
		)
		LET exploited = LENGTH(FOR v IN vulnerability FILTER v.exploit_in_wild RETURN 1)
		LET unpatched = LENGTH(FOR v IN vulnerability FILTER v.patch_status == "unpatched" RETURN 1)
		LET last = MAX(FOR v IN vulnerability RETURN v.updated_at)
		RETURN { total, bySev, exploited, unpatched, last }
	`
	var raw struct {
		Total int `json:"total"`
		BySev []struct {
			Sev string `json:"sev"`
			C   int    `json:"c"`
		} `json:"bySev"`
		Exploited int        `json:"exploited"`
		Unpatched int        `json:"unpatched"`
		Last      *time.Time `json:"last"`
	}
	found, err := s.queryOne(ctx, query, nil, &raw)
	if err != nil {
		return nil, s.wrapErr("stats", err)
	}
	stats := &Stats{BySeverity: map[string]int{}}
	if found {
		stats.Total = raw.Total
		stats.ExploitedIn = raw.Exploited
		stats.Unpatched = raw.Unpatched
		stats.LastUpdated = raw.Last
		for _, b := range raw.BySev {
			stats.BySeverity[b.Sev] = b.C
		}
	}
	return stats, nil
}

// EnsureTools lazily registers tools on first reference. Existing tools keep
// their registry metadata.
func (s *ArangoStore) EnsureTools(ctx context.Context, tools []*model.Tool) error {
	query := `
		FOR t IN @tools
			UPSERT { name: t.name }
				INSERT t
				UPDATE {}
			IN tool
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tools": tools},
	})
	if err != nil {
		return s.wrapErr("ensure tools", err)
	}
	return cursor.Close()
}

// ListTools returns every registered tool.
func (s *ArangoStore) ListTools(ctx context.Context) ([]*model.Tool, error) {
	query := `
		FOR t IN tool
			SORT t.name ASC
			RETURN t
	`
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{})
	if err != nil {
		return nil, s.wrapErr("list tools", err)
	}
	defer cursor.Close()

	var out []*model.Tool
	for cursor.HasMore() {
		var t model.Tool
		if _, err := cursor.ReadDocument(ctx, &t); err != nil {
			return nil, s.wrapErr("list tools", err)
		}
		out = append(out, &t)
	}
	return out, nil
}

// checkpointDoc is the collection_state document per source.
type checkpointDoc struct {
	Source    string    `json:"source"`
	Since     time.Time `json:"since"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadCheckpoint returns the last persisted `since` cursor for a source.
func (s *ArangoStore) LoadCheckpoint(ctx context.Context, source string) (*time.Time, error) {
	query := `
		FOR c IN collection_state
			FILTER c.source == @source
			LIMIT 1
			RETURN c
	`
	var doc checkpointDoc
	found, err := s.queryOne(ctx, query, map[string]interface{}{"source": source}, &doc)
	if err != nil {
		return nil, s.wrapErr("load checkpoint", err)
	}
	if !found {
		return nil, nil
	}
	since := doc.Since
	return &since, nil
}

// SaveCheckpoint persists the `since` cursor for a source.
func (s *ArangoStore) SaveCheckpoint(ctx context.Context, source string, since time.Time) error {
	query := `
		UPSERT { source: @source }
			INSERT { source: @source, since: @since, updated_at: @now }
			UPDATE { since: @since, updated_at: @now }
		IN collection_state
	`
	bindVars := map[string]interface{}{
		"source": source,
		"since":  since,
		"now":    time.Now().UTC(),
	}
	cursor, err := s.db.Database.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return s.wrapErr("save checkpoint", err)
	}
	return cursor.Close()
}

// Ping probes store health via the server version endpoint.
func (s *ArangoStore) Ping(ctx context.Context) error {
	if _, err := s.db.Client.Version(ctx); err != nil {
		return fmt.Errorf("ping: %w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Store = (*ArangoStore)(nil)
