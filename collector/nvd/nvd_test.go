package nvd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/internal/config"
)

func newMatcher(t *testing.T) *collector.ToolMatcher {
	t.Helper()
	specs, err := config.LoadToolRegistry("does-not-exist.yaml")
	require.NoError(t, err)
	return collector.NewToolMatcher(specs)
}

const pageBody = `{
  "totalResults": 3,
  "vulnerabilities": [
    {"cve": {
      "id": "CVE-2025-54132",
      "published": "2025-08-01T10:00:00.000",
      "descriptions": [{"lang": "en", "value": "Cursor IDE allows remote code execution via crafted MCP configuration."}]
    }},
    {"cve": {
      "id": "CVE-2025-22222",
      "published": "2025-08-01T11:00:00.000",
      "descriptions": [{"lang": "en", "value": "Buffer overflow in a legacy FTP daemon."}]
    }},
    {"cve": {
      "id": "CVE-2025-33333",
      "published": "2025-08-01T12:00:00.000",
      "descriptions": [{"lang": "en", "value": "Privilege escalation in an editor plugin."}],
      "configurations": [{"nodes": [{"cpeMatch": [{"criteria": "cpe:2.3:a:jetbrains:intellij_idea:*"}]}]}]
    }}
  ]
}`

func TestFetchFiltersRelevantCVEs(t *testing.T) {
	var gotQuery []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = append(gotQuery, r.URL.RawQuery)
		fmt.Fprint(w, pageBody)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Hour, 24*time.Hour, newMatcher(t), zap.NewNop().Sugar())

	since := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	records, err := n.Fetch(context.Background(), &since)
	require.NoError(t, err)

	// The description hit and the CPE vendor hit survive, the FTP daemon
	// does not.
	require.Len(t, records, 2)
	assert.Equal(t, Source, records[0].Source)
	assert.Equal(t, "CVE-2025-54132", records[0].SourceRef)
	assert.Equal(t, "CVE-2025-33333", records[1].SourceRef)

	require.Len(t, gotQuery, 1, "three results fit one page")
	assert.Contains(t, gotQuery[0], "pubStartDate=2025-08-01T00%3A00%3A00.000")
	assert.Contains(t, gotQuery[0], "startIndex=0")
}

func TestFetchMapsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Hour, 24*time.Hour, newMatcher(t), zap.NewNop().Sugar())

	_, err := n.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, collector.ErrSourceUnavailable)
}
