// Package ghsa collects global security advisories from the GitHub
// Advisory Database REST API.
package ghsa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// Source is the provenance tag carried on every record this adapter emits.
const Source = "github"

const (
	perPage  = 100
	maxPages = 10
)

// Advisory is the subset of the GitHub advisory object the pipeline consumes.
type Advisory struct {
	GHSAID      string      `json:"ghsa_id"`
	CVEID       string      `json:"cve_id"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	Severity    string      `json:"severity"`
	HTMLURL     string      `json:"html_url"`
	PublishedAt time.Time   `json:"published_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CVSS        *CVSS       `json:"cvss"`
	References  []string    `json:"references"`
	CWEs        []CWE       `json:"cwes"`
	Identifiers []DBIdent   `json:"identifiers"`
	Vulns       []AffectedV `json:"vulnerabilities"`
}

type CVSS struct {
	Score        float64 `json:"score"`
	VectorString string  `json:"vector_string"`
}

type CWE struct {
	CWEID string `json:"cwe_id"`
	Name  string `json:"name"`
}

type DBIdent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type AffectedV struct {
	Package             *Package `json:"package"`
	FirstPatchedVersion string   `json:"first_patched_version"`
	VulnerableVersions  string   `json:"vulnerable_version_range"`
	VulnerableFunctions []string `json:"vulnerable_functions"`
}

type Package struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

type GHSA struct {
	client   *collector.Client
	matcher  *collector.ToolMatcher
	baseURL  string
	interval time.Duration
	lookback time.Duration
	logger   *zap.SugaredLogger
}

func New(token string, interval, lookback time.Duration, matcher *collector.ToolMatcher, logger *zap.SugaredLogger) *GHSA {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &GHSA{
		client:   collector.NewClient(Source, headers, logger),
		matcher:  matcher,
		baseURL:  "https://api.github.com",
		interval: interval,
		lookback: lookback,
		logger:   logger,
	}
}

func (g *GHSA) Name() string            { return Source }
func (g *GHSA) Interval() time.Duration { return g.interval }

// Fetch pages through advisories published since the checkpoint, keeping the
// AI-assistant-related ones. Pagination is capped so one bad checkpoint
// cannot pin the worker on the API forever.
func (g *GHSA) Fetch(ctx context.Context, since *time.Time) ([]model.RawRecord, error) {
	now := time.Now().UTC()
	start := now.Add(-g.lookback)
	if since != nil {
		start = since.UTC()
	}

	var records []model.RawRecord
	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("published", ">"+start.Format("2006-01-02"))
		params.Set("per_page", fmt.Sprintf("%d", perPage))
		params.Set("page", fmt.Sprintf("%d", page))
		params.Set("sort", "published")
		params.Set("direction", "asc")

		var advisories []Advisory
		requestURL := fmt.Sprintf("%s/advisories?%s", g.baseURL, params.Encode())
		if err := g.client.GetJSON(ctx, requestURL, &advisories); err != nil {
			return nil, err
		}

		for _, adv := range advisories {
			if !g.matcher.Relevant(adv.Summary + " " + adv.Description) {
				continue
			}
			payload, err := json.Marshal(adv)
			if err != nil {
				g.logger.Warnf("failed to marshal advisory %s: %v", adv.GHSAID, err)
				continue
			}
			records = append(records, model.RawRecord{
				Source:    Source,
				SourceRef: adv.GHSAID,
				Payload:   payload,
				FetchedAt: now,
			})
		}

		if len(advisories) < perPage {
			break
		}
	}

	g.logger.Infof("GitHub advisories returned %d AI assistant related records since %s", len(records), start.Format(time.RFC3339))
	return records, nil
}
