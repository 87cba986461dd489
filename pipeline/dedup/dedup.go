// Package dedup resolves normalized drafts against the canonical store and
// merges duplicates. One canonical record per real-world vulnerability is the
// invariant everything downstream leans on.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/util"
)

// Outcome classifies what resolving a draft did.
type Outcome string

const (
	// OutcomeNew minted a fresh canonical record.
	OutcomeNew Outcome = "new"
	// OutcomeUpdated merged the draft into an existing record and changed it.
	OutcomeUpdated Outcome = "updated"
	// OutcomeDuplicate merged into an existing record without material change.
	OutcomeDuplicate Outcome = "duplicate"
)

// Changes records which merge effects fired, for the alert engine.
type Changes struct {
	SeverityUpgraded bool
	ExploitObserved  bool
	POCObserved      bool
	PatchAvailable   bool
	NewSource        bool
	Material         bool
}

// Resolution is the result of resolving one draft.
type Resolution struct {
	Outcome Outcome
	Vuln    *model.Vulnerability
	Changes Changes
}

// Resolver matches drafts to canonical records. Matching by CVE is exact;
// records without a CVE fall back to fuzzy matching on title similarity,
// tool overlap, and discovery date proximity.
type Resolver struct {
	store          store.Store
	titleThreshold float64
	dateWindow     time.Duration
	logger         *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func NewResolver(s store.Store, titleThreshold float64, dateWindow time.Duration, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		store:          s,
		titleThreshold: titleThreshold,
		dateWindow:     dateWindow,
		logger:         logger,
		locks:          make(map[string]*identityLock),
	}
}

// Resolve matches the draft to its canonical record, merging in place, or
// mints a new record when nothing matches. Merges for the same identity are
// serialized; the returned record reflects the post-merge state.
func (r *Resolver) Resolve(ctx context.Context, draft model.Draft, now time.Time) (Resolution, error) {
	if draft.CVEID != "" {
		unlock := r.lockIdentity("cve:" + draft.CVEID)
		defer unlock()
		existing, err := r.store.FindByCVE(ctx, draft.CVEID)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to look up %s: %w", draft.CVEID, err)
		}
		return r.apply(existing, draft, now), nil
	}
	return r.resolveFuzzy(ctx, draft, now)
}

// resolveFuzzy serializes no-CVE drafts on their matched candidate. A
// candidate found without its lock held is confirmed again under it, so two
// drafts converging on one record merge one at a time.
func (r *Resolver) resolveFuzzy(ctx context.Context, draft model.Draft, now time.Time) (Resolution, error) {
	unlock := r.lockIdentity(fmt.Sprintf("ref:%s:%s", draft.Source, draft.SourceRef))
	defer unlock()

	for attempt := 0; attempt < 3; attempt++ {
		cand, err := r.fuzzyMatch(ctx, draft)
		if err != nil {
			return Resolution{}, err
		}
		if cand == nil {
			return r.apply(nil, draft, now), nil
		}
		res, confirmed, err := r.mergeCandidate(ctx, draft, cand.VulnerabilityID, now)
		if err != nil {
			return Resolution{}, err
		}
		if confirmed {
			return res, nil
		}
		// The candidate changed while we waited for its lock; match again.
	}
	return Resolution{}, fmt.Errorf("fuzzy match for %s/%s would not settle", draft.Source, draft.SourceRef)
}

// mergeCandidate re-runs the match while holding the candidate's lock and
// merges only when the same record still wins.
func (r *Resolver) mergeCandidate(ctx context.Context, draft model.Draft, vulnID string, now time.Time) (Resolution, bool, error) {
	unlock := r.lockIdentity("vuln:" + vulnID)
	defer unlock()

	cand, err := r.fuzzyMatch(ctx, draft)
	if err != nil {
		return Resolution{}, false, err
	}
	if cand == nil || cand.VulnerabilityID != vulnID {
		return Resolution{}, false, nil
	}
	return r.apply(cand, draft, now), true, nil
}

func (r *Resolver) apply(existing *model.Vulnerability, draft model.Draft, now time.Time) Resolution {
	if existing == nil {
		return Resolution{
			Outcome: OutcomeNew,
			Vuln:    model.NewVulnerability(draft, now),
			Changes: Changes{Material: true, NewSource: true},
		}
	}
	merged := existing.Clone()
	changes := Merge(merged, draft, now)
	outcome := OutcomeDuplicate
	if changes.Material {
		outcome = OutcomeUpdated
	}
	return Resolution{Outcome: outcome, Vuln: merged, Changes: changes}
}

func (r *Resolver) lockIdentity(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &identityLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// fuzzyMatch looks for an existing record with high title similarity,
// overlapping tools, and a discovery date inside the window. It only runs
// for drafts without a cve_id and only considers records without one. When
// several qualify, the oldest record wins so merges always flow toward the
// earliest sighting.
func (r *Resolver) fuzzyMatch(ctx context.Context, draft model.Draft) (*model.Vulnerability, error) {
	if draft.Title == "" || len(draft.AffectedTools) == 0 {
		return nil, nil
	}
	from := draft.DiscoveryDate.Add(-r.dateWindow)
	to := draft.DiscoveryDate.Add(r.dateWindow)
	candidates, err := r.store.FindCandidates(ctx, draft.AffectedTools, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup candidates: %w", err)
	}

	draftTokens := util.TitleTokens(draft.Title)
	var best *model.Vulnerability
	for _, cand := range candidates {
		// A record that carries a CVE can only be matched through it.
		if cand.CVEID != "" {
			continue
		}
		sim := util.JaccardSimilarity(draftTokens, util.TitleTokens(cand.Title))
		if sim < r.titleThreshold {
			continue
		}
		if best == nil || cand.CreatedAt.Before(best.CreatedAt) {
			best = cand
		}
	}
	return best, nil
}
