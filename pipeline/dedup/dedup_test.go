package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

func newTestResolver(s store.Store) *Resolver {
	return NewResolver(s, 0.6, 14*24*time.Hour, zap.NewNop().Sugar())
}

func TestResolveMintsNewRecord(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	res, err := r.Resolve(context.Background(), baseDraft("nvd"), now)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNew, res.Outcome)
	assert.True(t, res.Changes.Material)
	assert.NotEmpty(t, res.Vuln.VulnerabilityID)
	assert.Equal(t, "CVE-2025-54132", res.Vuln.CVEID)
}

func TestResolveMatchesByCVE(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	first, err := r.Resolve(context.Background(), baseDraft("nvd"), now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	second := baseDraft("github")
	second.Title = "Completely different advisory wording for the same CVE"
	second.Severity = model.SeverityHigh
	second.CVSSScore = floatPtr(8.1)

	res, err := r.Resolve(context.Background(), second, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, first.Vuln.VulnerabilityID, res.Vuln.VulnerabilityID)
	assert.Equal(t, 2, res.Vuln.SourceCount())
}

func TestResolveFuzzyMatchWithoutCVE(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seed := baseDraft("rss-cursor")
	seed.CVEID = ""
	first, err := r.Resolve(context.Background(), seed, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	similar := baseDraft("rss-github")
	similar.CVEID = ""
	similar.SourceRef = "other-ref"
	similar.Title = "Cursor MCP auto-start remote code execution flaw"
	similar.DiscoveryDate = seed.DiscoveryDate.Add(48 * time.Hour)

	res, err := r.Resolve(context.Background(), similar, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.Vuln.VulnerabilityID, res.Vuln.VulnerabilityID)
	assert.Equal(t, 2, res.Vuln.SourceCount())
}

func TestResolveDissimilarTitlesStaySeparate(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seed := baseDraft("rss-cursor")
	seed.CVEID = ""
	first, err := r.Resolve(context.Background(), seed, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	other := baseDraft("rss-github")
	other.CVEID = ""
	other.SourceRef = "other-ref"
	other.Title = "Tabnine telemetry leaks workspace file paths"
	other.AffectedTools = []string{"cursor"}

	res, err := r.Resolve(context.Background(), other, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNew, res.Outcome)
	assert.NotEqual(t, first.Vuln.VulnerabilityID, res.Vuln.VulnerabilityID)
}

func TestResolveOutsideDateWindowStaysSeparate(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seed := baseDraft("rss-cursor")
	seed.CVEID = ""
	first, err := r.Resolve(context.Background(), seed, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	late := baseDraft("rss-github")
	late.CVEID = ""
	late.SourceRef = "late-ref"
	late.DiscoveryDate = seed.DiscoveryDate.Add(30 * 24 * time.Hour)

	res, err := r.Resolve(context.Background(), late, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, res.Outcome)
}

func TestResolveCVEDraftNeverFuzzyMatches(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seed := baseDraft("rss-cursor")
	seed.CVEID = ""
	first, err := r.Resolve(context.Background(), seed, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	// Same wording, but this draft names a CVE the stored record lacks.
	withCVE := baseDraft("nvd")
	res, err := r.Resolve(context.Background(), withCVE, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNew, res.Outcome)
	assert.NotEqual(t, first.Vuln.VulnerabilityID, res.Vuln.VulnerabilityID)
}

func TestResolveFuzzySkipsCVEBearingCandidates(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seed := baseDraft("nvd")
	first, err := r.Resolve(context.Background(), seed, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	noCVE := baseDraft("rss-cursor")
	noCVE.CVEID = ""
	res, err := r.Resolve(context.Background(), noCVE, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNew, res.Outcome)
	assert.NotEqual(t, first.Vuln.VulnerabilityID, res.Vuln.VulnerabilityID)
}

// shiftingStore serves a different candidate set per FindCandidates call,
// standing in for a record that changes while a merge waits on its lock.
type shiftingStore struct {
	*store.MemoryStore
	results [][]*model.Vulnerability
	calls   int
}

func (s *shiftingStore) FindCandidates(_ context.Context, _ []string, _, _ time.Time) ([]*model.Vulnerability, error) {
	res := s.results[s.calls]
	if s.calls < len(s.results)-1 {
		s.calls++
	}
	return res, nil
}

func TestResolveFuzzyReconfirmsUnderCandidateLock(t *testing.T) {
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	seedA := baseDraft("rss-cursor")
	seedA.CVEID = ""
	a := model.NewVulnerability(seedA, now)

	seedB := baseDraft("rss-github")
	seedB.CVEID = ""
	seedB.SourceRef = "other-ref"
	b := model.NewVulnerability(seedB, now.Add(-time.Hour))

	// The first lookup sees A; every lookup under a candidate lock sees B,
	// as if A was folded into B while this merge waited.
	s := &shiftingStore{
		MemoryStore: store.NewMemoryStore(),
		results: [][]*model.Vulnerability{
			{a},
			{b},
		},
	}
	r := newTestResolver(s)

	draft := baseDraft("rss-tabnine")
	draft.CVEID = ""
	draft.SourceRef = "third-ref"
	res, err := r.Resolve(context.Background(), draft, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, b.VulnerabilityID, res.Vuln.VulnerabilityID)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
}

func TestResolveReMergeIsDuplicate(t *testing.T) {
	mem := store.NewMemoryStore()
	r := newTestResolver(mem)
	now := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	d := baseDraft("nvd")
	first, err := r.Resolve(context.Background(), d, now)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(context.Background(), first.Vuln))

	res, err := r.Resolve(context.Background(), d, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
}
