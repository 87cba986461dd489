package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickdeaconx/kirinvulndb/internal/cache"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// countingStore counts the read queries reaching the underlying store.
type countingStore struct {
	*MemoryStore
	listCalls  int
	statsCalls int
}

func (s *countingStore) ListVulnerabilities(ctx context.Context, f VulnerabilityFilter) ([]*model.Vulnerability, error) {
	s.listCalls++
	return s.MemoryStore.ListVulnerabilities(ctx, f)
}

func (s *countingStore) Stats(ctx context.Context) (*Stats, error) {
	s.statsCalls++
	return s.MemoryStore.Stats(ctx)
}

func cachedSeed(id, cveID string) *model.Vulnerability {
	return seedVuln(id, cveID, model.SeverityHigh, []string{"cursor"},
		time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC))
}

func TestCachedStoreServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, inner.Upsert(ctx, cachedSeed("kirin-1", "CVE-2025-0001")))

	cs := NewCachedStore(inner, cache.New(time.Minute))

	first, err := cs.ListVulnerabilities(ctx, VulnerabilityFilter{Limit: 10})
	require.NoError(t, err)
	second, err := cs.ListVulnerabilities(ctx, VulnerabilityFilter{Limit: 10})
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, inner.listCalls)

	// A different filter is a different cache entry.
	_, err = cs.ListVulnerabilities(ctx, VulnerabilityFilter{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.listCalls)
}

func TestCachedStoreInvalidationRefreshesReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	c := cache.New(time.Minute)
	cs := NewCachedStore(inner, c)

	stats, err := cs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	require.NoError(t, inner.Upsert(ctx, cachedSeed("kirin-1", "CVE-2025-0001")))

	// Still the cached snapshot until the fan-out invalidates.
	stats, err = cs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 1, inner.statsCalls)

	c.Invalidate("")
	stats, err = cs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 2, inner.statsCalls)
}

func TestCachedStoreWritesBypassCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cs := NewCachedStore(inner, cache.New(time.Minute))

	v := cachedSeed("kirin-1", "CVE-2025-0001")
	require.NoError(t, cs.Upsert(ctx, v))

	got, err := cs.FindByCVE(ctx, "CVE-2025-0001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v.VulnerabilityID, got.VulnerabilityID)
}
