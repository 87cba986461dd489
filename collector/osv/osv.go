// Package osv collects advisories from the OSV.dev API for the package
// ecosystems the monitored assistants ship through (editor extensions, npm
// CLIs, PyPI SDKs).
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// Source is the provenance tag carried on every record this adapter emits.
const Source = "osv"


// WatchedPackage names one published artifact of a monitored tool.
type WatchedPackage struct {
	Ecosystem string
	Name      string
	Tool      string
}

// DefaultWatchlist covers the publicly distributed packages of the monitored
// assistants.
var DefaultWatchlist = []WatchedPackage{
	{Ecosystem: "npm", Name: "cursor-cli", Tool: "cursor"},
	{Ecosystem: "npm", Name: "@githubnext/github-copilot-cli", Tool: "github_copilot"},
	{Ecosystem: "npm", Name: "tabnine", Tool: "tabnine"},
	{Ecosystem: "npm", Name: "codeium", Tool: "codeium"},
	{Ecosystem: "PyPI", Name: "tabnine", Tool: "tabnine"},
	{Ecosystem: "PyPI", Name: "codeium", Tool: "codeium"},
	{Ecosystem: "npm", Name: "@sourcegraph/cody", Tool: "sourcegraph_cody"},
}

type queryRequest struct {
	Package queryPackage `json:"package"`
}

type queryPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type queryResponse struct {
	Vulns []models.Vulnerability `json:"vulns"`
}

// Record is the payload this adapter emits: the OSV vulnerability plus the
// tool the watched package belongs to.
type Record struct {
	Tool          string               `json:"tool"`
	Vulnerability models.Vulnerability `json:"vulnerability"`
}

type OSV struct {
	client    *collector.Client
	baseURL   string
	watchlist []WatchedPackage
	interval  time.Duration
	logger    *zap.SugaredLogger
}

func New(baseURL string, interval time.Duration, watchlist []WatchedPackage, logger *zap.SugaredLogger) *OSV {
	if len(watchlist) == 0 {
		watchlist = DefaultWatchlist
	}
	return &OSV{
		client:    collector.NewClient(Source, nil, logger),
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		watchlist: watchlist,
		interval:  interval,
		logger:    logger,
	}
}

func (o *OSV) Name() string            { return Source }
func (o *OSV) Interval() time.Duration { return o.interval }

// Fetch queries OSV.dev for every watched package and keeps the entries
// modified since the checkpoint. OSV queries return the full advisory set
// per package, so the modified filter is what makes re-fetching cheap.
func (o *OSV) Fetch(ctx context.Context, since *time.Time) ([]model.RawRecord, error) {
	now := time.Now().UTC()

	var records []model.RawRecord
	seen := make(map[string]bool)
	for _, pkg := range o.watchlist {
		body, err := json.Marshal(queryRequest{Package: queryPackage{Name: pkg.Name, Ecosystem: pkg.Ecosystem}})
		if err != nil {
			return nil, err
		}

		data, err := o.client.Post(ctx, o.baseURL+"/query", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		var resp queryResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			o.logger.Warnf("failed to decode OSV response for %s/%s: %v", pkg.Ecosystem, pkg.Name, err)
			continue
		}

		for _, vuln := range resp.Vulns {
			if since != nil && vuln.Modified.Before(*since) {
				continue
			}
			if seen[vuln.ID] {
				continue
			}
			seen[vuln.ID] = true

			payload, err := json.Marshal(Record{Tool: pkg.Tool, Vulnerability: vuln})
			if err != nil {
				o.logger.Warnf("failed to marshal OSV entry %s: %v", vuln.ID, err)
				continue
			}
			records = append(records, model.RawRecord{
				Source:    Source,
				SourceRef: vuln.ID,
				Payload:   payload,
				FetchedAt: now,
			})
		}
	}

	o.logger.Infof("OSV returned %d records across %d watched packages", len(records), len(o.watchlist))
	return records, nil
}
