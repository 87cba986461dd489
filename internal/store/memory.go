package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rickdeaconx/kirinvulndb/model"
)

// MemoryStore is an in-process Store used by tests and by dev mode when no
// ArangoDB deployment is reachable.
type MemoryStore struct {
	mu          sync.RWMutex
	vulns       map[string]*model.Vulnerability // by vulnerability_id
	alerts      []*model.Alert
	tools       map[string]*model.Tool
	checkpoints map[string]time.Time

	// FailPing makes Ping report ErrUnavailable, for scheduler tests.
	FailPing bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vulns:       map[string]*model.Vulnerability{},
		tools:       map[string]*model.Tool{},
		checkpoints: map[string]time.Time{},
	}
}

func (m *MemoryStore) FindByCVE(_ context.Context, cveID string) (*model.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.vulns {
		if v.CVEID != "" && strings.EqualFold(v.CVEID, cveID) {
			return v.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindByVulnID(_ context.Context, vulnID string) (*model.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vulns[vulnID]; ok {
		return v.Clone(), nil
	}
	return nil, nil
}

func (m *MemoryStore) FindCandidates(_ context.Context, tools []string, from, to time.Time) ([]*model.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	toolSet := map[string]bool{}
	for _, t := range tools {
		toolSet[t] = true
	}

	var out []*model.Vulnerability
	for _, v := range m.vulns {
		if v.DiscoveryDate.Before(from) || v.DiscoveryDate.After(to) {
			continue
		}
		for _, t := range v.AffectedTools {
			if toolSet[t] {
				out = append(out, v.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, v *model.Vulnerability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(v)
}

func (m *MemoryStore) upsertLocked(v *model.Vulnerability) error {
	// Enforce the unique cve_id invariant the way the persistent index does.
	if v.CVEID != "" {
		for id, existing := range m.vulns {
			if id != v.VulnerabilityID && strings.EqualFold(existing.CVEID, v.CVEID) {
				return ErrConflict
			}
		}
	}
	m.vulns[v.VulnerabilityID] = v.Clone()
	return nil
}

func (m *MemoryStore) UpsertWithAlerts(_ context.Context, v *model.Vulnerability, alerts []*model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertLocked(v); err != nil {
		return err
	}
	for _, a := range alerts {
		cp := *a
		m.alerts = append(m.alerts, &cp)
	}
	return nil
}

func (m *MemoryStore) AppendAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *MemoryStore) UpdateAlertStatus(_ context.Context, alertID string, status model.AlertStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.AlertID == alertID {
			a.Status = status
			a.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) CountRecentAlerts(_ context.Context, vulnID string, cutoff time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.alerts {
		if a.VulnerabilityID == vulnID && !a.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) RecentAlerts(_ context.Context, limit int) ([]*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]*model.Alert, len(m.alerts))
	for i, a := range m.alerts {
		cp := *a
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListVulnerabilities(_ context.Context, f VulnerabilityFilter) ([]*model.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Vulnerability
	for _, v := range m.vulns {
		if f.Severity != "" && v.Severity != f.Severity {
			continue
		}
		if f.Tool != "" {
			hit := false
			for _, t := range v.AffectedTools {
				if t == f.Tool {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		if f.Since != nil && v.UpdatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{BySeverity: map[string]int{}}
	for _, v := range m.vulns {
		stats.Total++
		stats.BySeverity[string(v.Severity)]++
		if v.ExploitInWild {
			stats.ExploitedIn++
		}
		if v.PatchStatus == model.PatchStatusUnpatched {
			stats.Unpatched++
		}
		if stats.LastUpdated == nil || v.UpdatedAt.After(*stats.LastUpdated) {
			ts := v.UpdatedAt
			stats.LastUpdated = &ts
		}
	}
	return stats, nil
}

func (m *MemoryStore) EnsureTools(_ context.Context, tools []*model.Tool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tools {
		if _, ok := m.tools[t.Name]; !ok {
			cp := *t
			m.tools[t.Name] = &cp
		}
	}
	return nil
}

func (m *MemoryStore) ListTools(_ context.Context) ([]*model.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Tool
	for _, t := range m.tools {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) LoadCheckpoint(_ context.Context, source string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ts, ok := m.checkpoints[source]; ok {
		cp := ts
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) SaveCheckpoint(_ context.Context, source string, since time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[source] = since
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	if m.FailPing {
		return ErrUnavailable
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
