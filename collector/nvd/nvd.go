// Package nvd collects CVEs from the National Vulnerability Database
// CVE API 2.0 and keeps the ones touching AI coding assistants.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// Source is the provenance tag carried on every record this adapter emits.
const Source = "nvd"

const (
	resultsPerPage = 2000
	timeFormat     = "2006-01-02T15:04:05.000"
)

// cpeVendors are vendor substrings in CPE criteria that mark a record as
// relevant even when the description stays generic.
var cpeVendors = []string{
	"cursor", "github", "amazon", "tabnine", "codeium",
	"replit", "sourcegraph", "jetbrains",
}

type NVD struct {
	client   *collector.Client
	matcher  *collector.ToolMatcher
	baseURL  string
	interval time.Duration
	lookback time.Duration
	logger   *zap.SugaredLogger
}

type Option func(*NVD)

// WithAPIKey raises the NVD rate limit by sending the apiKey header.
func WithAPIKey(key string) Option {
	return func(n *NVD) {
		if key != "" {
			n.client = collector.NewClient(Source, map[string]string{"apiKey": key}, n.logger)
		}
	}
}

func New(baseURL string, interval, lookback time.Duration, matcher *collector.ToolMatcher, logger *zap.SugaredLogger, opts ...Option) *NVD {
	n := &NVD{
		client:   collector.NewClient(Source, nil, logger),
		matcher:  matcher,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		interval: interval,
		lookback: lookback,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *NVD) Name() string            { return Source }
func (n *NVD) Interval() time.Duration { return n.interval }

// Fetch pages through every CVE published since the checkpoint and returns
// the AI-assistant-related subset as raw records. With a nil checkpoint the
// configured lookback window applies.
func (n *NVD) Fetch(ctx context.Context, since *time.Time) ([]model.RawRecord, error) {
	now := time.Now().UTC()
	start := now.Add(-n.lookback)
	if since != nil {
		start = since.UTC()
	}

	var records []model.RawRecord
	startIndex := 0
	for {
		params := url.Values{}
		params.Set("pubStartDate", start.Format(timeFormat))
		params.Set("pubEndDate", now.Format(timeFormat))
		params.Set("resultsPerPage", fmt.Sprintf("%d", resultsPerPage))
		params.Set("startIndex", fmt.Sprintf("%d", startIndex))

		var page response
		requestURL := fmt.Sprintf("%s/cves/2.0?%s", n.baseURL, params.Encode())
		if err := n.client.GetJSON(ctx, requestURL, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Vulnerabilities {
			if !n.relevant(item.CVE) {
				continue
			}
			payload, err := json.Marshal(item)
			if err != nil {
				n.logger.Warnf("failed to marshal NVD item %s: %v", item.CVE.ID, err)
				continue
			}
			records = append(records, model.RawRecord{
				Source:    Source,
				SourceRef: item.CVE.ID,
				Payload:   payload,
				FetchedAt: now,
			})
		}

		startIndex += resultsPerPage
		if startIndex >= page.TotalResults || len(page.Vulnerabilities) == 0 {
			break
		}
		n.logger.Infof("fetched %d of %d NVD results", startIndex, page.TotalResults)
	}

	n.logger.Infof("NVD returned %d AI assistant related records since %s", len(records), start.Format(time.RFC3339))
	return records, nil
}

func (n *NVD) relevant(cve CVE) bool {
	if n.matcher.Relevant(cve.Description()) {
		return true
	}
	for _, cpe := range cve.CPECriteria() {
		lower := strings.ToLower(cpe)
		for _, vendor := range cpeVendors {
			if strings.Contains(lower, vendor) {
				return true
			}
		}
	}
	return false
}
