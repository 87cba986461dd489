package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/collector/ghsa"
	"github.com/rickdeaconx/kirinvulndb/collector/nvd"
	"github.com/rickdeaconx/kirinvulndb/collector/vendorrss"
	"github.com/rickdeaconx/kirinvulndb/internal/config"
	"github.com/rickdeaconx/kirinvulndb/model"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	specs, err := config.LoadToolRegistry("does-not-exist.yaml")
	require.NoError(t, err)
	return New(collector.NewToolMatcher(specs), zap.NewNop().Sugar())
}

func rawRecord(t *testing.T, source, ref string, payload interface{}) model.RawRecord {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.RawRecord{
		Source:    source,
		SourceRef: ref,
		Payload:   data,
		FetchedAt: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeNVD(t *testing.T) {
	n := newTestNormalizer(t)

	item := nvd.Item{CVE: nvd.CVE{
		ID:        "CVE-2025-54132",
		Published: "2025-08-01T10:00:00.000",
		Descriptions: []nvd.LangString{
			{Lang: "en", Value: "Cursor IDE allows remote code execution via crafted MCP configuration. A proof of concept is available."},
		},
		Metrics: nvd.Metrics{
			CVSSMetricV31: []nvd.CVSSMetric{{CVSSData: nvd.CVSSData{
				VectorString: "CVSS:3.1/AV:N/AC:L/PR:N/UI:R/S:U/C:H/I:H/A:H",
				BaseScore:    8.8,
			}}},
		},
		References: []nvd.Reference{{URL: "https://nvd.nist.gov/vuln/detail/CVE-2025-54132"}},
		Weaknesses: []nvd.Weakness{{Description: []nvd.LangString{{Value: "CWE-94"}}}},
	}}

	d, err := n.Normalize(rawRecord(t, "nvd", "CVE-2025-54132", item))
	require.NoError(t, err)

	assert.Equal(t, "CVE-2025-54132", d.CVEID)
	assert.Equal(t, model.SeverityHigh, d.Severity)
	require.NotNil(t, d.CVSSScore)
	assert.Equal(t, 8.8, *d.CVSSScore)
	assert.Equal(t, 0.9, d.ConfidenceScore)
	assert.Contains(t, d.AffectedTools, "cursor")
	assert.Contains(t, d.AttackVectors, "rce")
	assert.True(t, d.POCAvailable)
	assert.Equal(t, "CWE-94", d.TechnicalDetails)
	assert.Equal(t, time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC), d.DiscoveryDate)
}

func TestNormalizeNVDWithoutCVSSFallsBack(t *testing.T) {
	n := newTestNormalizer(t)

	item := nvd.Item{CVE: nvd.CVE{
		ID: "CVE-2025-11111",
		Descriptions: []nvd.LangString{
			{Lang: "en", Value: "GitHub Copilot suggestion handling issue."},
		},
		References: []nvd.Reference{{URL: "https://example.com/adv"}},
	}}

	d, err := n.Normalize(rawRecord(t, "nvd", "CVE-2025-11111", item))
	require.NoError(t, err)

	assert.Equal(t, model.SeverityMedium, d.Severity)
	assert.Nil(t, d.CVSSScore)
	assert.InDelta(t, 0.8, d.ConfidenceScore, 1e-9)
}

func TestNormalizeNVDIrrelevant(t *testing.T) {
	n := newTestNormalizer(t)

	item := nvd.Item{CVE: nvd.CVE{
		ID: "CVE-2025-22222",
		Descriptions: []nvd.LangString{
			{Lang: "en", Value: "Buffer overflow in a legacy FTP daemon."},
		},
	}}

	_, err := n.Normalize(rawRecord(t, "nvd", "CVE-2025-22222", item))
	assert.ErrorIs(t, err, ErrIrrelevantRecord)
}

func TestNormalizeGHSA(t *testing.T) {
	n := newTestNormalizer(t)

	adv := ghsa.Advisory{
		GHSAID:      "GHSA-xxxx-yyyy-zzzz",
		CVEID:       "CVE-2025-54132",
		Summary:     "Prompt injection in Sourcegraph Cody chat context",
		Description: "Crafted repository content can inject instructions into Cody.",
		Severity:    "high",
		HTMLURL:     "https://github.com/advisories/GHSA-xxxx-yyyy-zzzz",
		PublishedAt: time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC),
		CVSS: &ghsa.CVSS{
			Score:        7.5,
			VectorString: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N",
		},
		Vulns: []ghsa.AffectedV{{FirstPatchedVersion: "5.4.1"}},
	}

	d, err := n.Normalize(rawRecord(t, "github", adv.GHSAID, adv))
	require.NoError(t, err)

	assert.Equal(t, model.SeverityHigh, d.Severity)
	assert.Equal(t, 0.85, d.ConfidenceScore)
	assert.Contains(t, d.AffectedTools, "sourcegraph_cody")
	assert.Contains(t, d.AttackVectors, "prompt_injection")
	assert.Equal(t, model.PatchStatusPatchAvailable, d.PatchStatus)
	assert.Equal(t, "5.4.1", d.FixedVersion)
	assert.Equal(t, "https://github.com/advisories/GHSA-xxxx-yyyy-zzzz", d.References[0])
}

func TestNormalizeGHSAUnknownSeverity(t *testing.T) {
	n := newTestNormalizer(t)

	adv := ghsa.Advisory{
		GHSAID:      "GHSA-aaaa-bbbb-cccc",
		Summary:     "Tabnine desktop client update channel issue",
		Description: "Updates fetched without signature validation.",
		Severity:    "unknown",
		HTMLURL:     "https://github.com/advisories/GHSA-aaaa-bbbb-cccc",
	}

	d, err := n.Normalize(rawRecord(t, "github", adv.GHSAID, adv))
	require.NoError(t, err)

	assert.Equal(t, model.SeverityMedium, d.Severity)
	assert.InDelta(t, 0.75, d.ConfidenceScore, 1e-9)
}

func TestNormalizeRSS(t *testing.T) {
	n := newTestNormalizer(t)

	entry := vendorrss.Entry{
		Vendor:      "cursor",
		Title:       "Critical security update for Cursor addressing CVE-2025-54132",
		Description: "<p>We fixed a remote code execution issue.</p>",
		Link:        "https://cursor.ai/blog/security-update",
		Published:   time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	d, err := n.Normalize(rawRecord(t, "rss-cursor", "guid-1", entry))
	require.NoError(t, err)

	assert.Equal(t, "CVE-2025-54132", d.CVEID)
	assert.Equal(t, model.SeverityCritical, d.Severity)
	assert.Equal(t, 0.7, d.ConfidenceScore)
	assert.Contains(t, d.AffectedTools, "cursor")
	assert.NotContains(t, d.Description, "<p>", "HTML must be stripped")
	assert.Equal(t, []string{"https://cursor.ai/blog/security-update"}, d.References)
}

func TestNormalizeRSSNoSeverityHint(t *testing.T) {
	n := newTestNormalizer(t)

	entry := vendorrss.Entry{
		Vendor:    "cursor",
		Title:     "Cursor security advisory",
		Link:      "https://cursor.ai/blog/advisory",
		Published: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	d, err := n.Normalize(rawRecord(t, "rss-cursor", "guid-2", entry))
	require.NoError(t, err)

	assert.Equal(t, model.SeverityMedium, d.Severity)
	assert.InDelta(t, 0.6, d.ConfidenceScore, 1e-9)
}

func TestNormalizeRejectsUnknownSource(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Normalize(model.RawRecord{Source: "mystery", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizeRejectsUndecodablePayload(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Normalize(model.RawRecord{Source: "nvd", Payload: []byte(`not json`)})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestNormalizeRejectsMissingAnchor(t *testing.T) {
	n := newTestNormalizer(t)

	entry := vendorrss.Entry{
		Vendor:      "cursor",
		Title:       "Cursor fix announcement",
		Description: "",
		Link:        "",
	}
	_, err := n.Normalize(rawRecord(t, "rss-cursor", "guid-3", entry))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
