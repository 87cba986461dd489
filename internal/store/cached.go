package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rickdeaconx/kirinvulndb/internal/cache"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// CachedStore serves the hot list and aggregate queries of the read surface
// from an in-process TTL cache, delegating everything else to the wrapped
// store. The dispatcher invalidates the cache whenever a change fans out, so
// readers see at most one TTL of staleness.
type CachedStore struct {
	Store
	cache *cache.Cache
}

func NewCachedStore(s Store, c *cache.Cache) *CachedStore {
	return &CachedStore{Store: s, cache: c}
}

func (s *CachedStore) ListVulnerabilities(ctx context.Context, f VulnerabilityFilter) ([]*model.Vulnerability, error) {
	since := ""
	if f.Since != nil {
		since = f.Since.UTC().Format(time.RFC3339)
	}
	key := fmt.Sprintf("vulns:%s:%s:%s:%d", f.Severity, f.Tool, since, f.Limit)
	v, err := s.cache.GetOrCreate(key, func() (interface{}, error) {
		return s.Store.ListVulnerabilities(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Vulnerability), nil
}

func (s *CachedStore) RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	v, err := s.cache.GetOrCreate(fmt.Sprintf("alerts:recent:%d", limit), func() (interface{}, error) {
		return s.Store.RecentAlerts(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Alert), nil
}

func (s *CachedStore) Stats(ctx context.Context) (*Stats, error) {
	v, err := s.cache.GetOrCreate("stats", func() (interface{}, error) {
		return s.Store.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

var _ Store = (*CachedStore)(nil)
