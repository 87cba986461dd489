package osv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchFiltersByModified(t *testing.T) {
	var queried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		var req struct {
			Package struct {
				Name      string `json:"name"`
				Ecosystem string `json:"ecosystem"`
			} `json:"package"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		queried = append(queried, req.Package.Ecosystem+"/"+req.Package.Name)

		w.Write([]byte(`{"vulns": [
			{"id": "GHSA-aaaa-bbbb-cccc", "modified": "2025-08-01T12:00:00Z", "summary": "RCE in extension host"},
			{"id": "GHSA-old1-old1-old1", "modified": "2025-06-01T12:00:00Z", "summary": "long fixed issue"}
		]}`))
	}))
	defer srv.Close()

	watchlist := []WatchedPackage{
		{Ecosystem: "npm", Name: "cursor-cli", Tool: "cursor"},
		{Ecosystem: "PyPI", Name: "tabnine", Tool: "tabnine"},
	}
	o := New(srv.URL, time.Hour, watchlist, zap.NewNop().Sugar())

	since := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	records, err := o.Fetch(context.Background(), &since)
	require.NoError(t, err)

	assert.Equal(t, []string{"npm/cursor-cli", "PyPI/tabnine"}, queried)

	// The same advisory comes back for both packages; it is kept once and
	// the stale one is dropped.
	require.Len(t, records, 1)
	assert.Equal(t, Source, records[0].Source)
	assert.Equal(t, "GHSA-aaaa-bbbb-cccc", records[0].SourceRef)

	var rec Record
	require.NoError(t, json.Unmarshal(records[0].Payload, &rec))
	assert.Equal(t, "cursor", rec.Tool)
	assert.Equal(t, "GHSA-aaaa-bbbb-cccc", rec.Vulnerability.ID)
}

func TestFetchWithoutCheckpointKeepsEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulns": [
			{"id": "GHSA-old1-old1-old1", "modified": "2025-06-01T12:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	o := New(srv.URL, time.Hour, []WatchedPackage{{Ecosystem: "npm", Name: "codeium", Tool: "codeium"}}, zap.NewNop().Sugar())

	records, err := o.Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
