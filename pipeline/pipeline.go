// Package pipeline runs raw source records through normalization, dedup,
// scoring, persistence, and alert dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/pipeline/alert"
	"github.com/rickdeaconx/kirinvulndb/pipeline/dedup"
	"github.com/rickdeaconx/kirinvulndb/pipeline/normalize"
	"github.com/rickdeaconx/kirinvulndb/pipeline/score"
)

// Dispatcher fans a persisted change out to subscribers. Dispatch failures
// are logged, not retried: the store is the source of truth and the change
// is already durable.
type Dispatcher interface {
	Dispatch(ctx context.Context, vuln *model.Vulnerability, alerts []*model.Alert)
}

// Stats summarizes one batch.
type Stats struct {
	Processed  int
	New        int
	Updated    int
	Duplicates int
	Dropped    int
	Alerts     int
}

// Pipeline is the processing chain for one batch of raw records. Records are
// processed independently: one bad record never poisons the batch.
type Pipeline struct {
	normalizer *normalize.Normalizer
	resolver   *dedup.Resolver
	scorer     *score.Scorer
	alerts     *alert.Engine
	store      store.Store
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *zap.SugaredLogger
}

func New(
	n *normalize.Normalizer,
	r *dedup.Resolver,
	s *score.Scorer,
	a *alert.Engine,
	st store.Store,
	d Dispatcher,
	c clock.Clock,
	logger *zap.SugaredLogger,
) *Pipeline {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Pipeline{
		normalizer: n,
		resolver:   r,
		scorer:     s,
		alerts:     a,
		store:      st,
		dispatcher: d,
		clock:      c,
		logger:     logger,
	}
}

// Process runs a batch end to end. Malformed and irrelevant records are
// dropped; store unavailability aborts the batch so the scheduler can retry
// from the last checkpoint.
func (p *Pipeline) Process(ctx context.Context, records []model.RawRecord) (Stats, error) {
	var stats Stats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		outcome, err := p.processOne(ctx, rec, &stats)
		if err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				return stats, fmt.Errorf("store unavailable, aborting batch: %w", err)
			}
			if !errors.Is(err, normalize.ErrIrrelevantRecord) {
				p.logger.Warnf("failed to process record %s/%s: %v", rec.Source, rec.SourceRef, err)
			}
			stats.Dropped++
			continue
		}
		stats.Processed++
		switch outcome {
		case dedup.OutcomeNew:
			stats.New++
		case dedup.OutcomeUpdated:
			stats.Updated++
		case dedup.OutcomeDuplicate:
			stats.Duplicates++
		}
	}
	return stats, nil
}

func (p *Pipeline) processOne(ctx context.Context, rec model.RawRecord, stats *Stats) (dedup.Outcome, error) {
	draft, err := p.normalizer.Normalize(rec)
	if err != nil {
		if errors.Is(err, normalize.ErrIrrelevantRecord) {
			p.logger.Debugf("skipping %s/%s: %v", rec.Source, rec.SourceRef, err)
			return "", err
		}
		return "", err
	}

	now := p.clock.Now()
	res, err := p.resolver.Resolve(ctx, draft, now)
	if err != nil {
		return "", err
	}

	p.scorer.Rescore(res.Vuln)

	var alerts []*model.Alert
	if res.Outcome != dedup.OutcomeDuplicate {
		alerts, err = p.alerts.Evaluate(ctx, res)
		if err != nil {
			return "", err
		}
	}

	res, alerts, err = p.persist(ctx, res, alerts, now)
	if err != nil {
		return "", err
	}
	stats.Alerts += len(alerts)

	if p.dispatcher != nil && res.Outcome != dedup.OutcomeDuplicate {
		p.dispatcher.Dispatch(ctx, res.Vuln, activeAlerts(alerts))
	}
	return res.Outcome, nil
}

// persist writes the record and its alerts in one transaction. A unique
// constraint race on cve_id means another worker inserted the same CVE
// between resolve and write; re-resolving folds this draft into that record.
// The returned resolution is what was actually written, so the caller
// dispatches the surviving record, never the discarded loser.
func (p *Pipeline) persist(ctx context.Context, res dedup.Resolution, alerts []*model.Alert, now time.Time) (dedup.Resolution, []*model.Alert, error) {
	err := p.store.UpsertWithAlerts(ctx, res.Vuln, alerts)
	if err == nil {
		return res, alerts, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return res, nil, err
	}

	p.logger.Infof("cve conflict on %s, re-resolving", res.Vuln.CVEID)
	winner, ferr := p.store.FindByCVE(ctx, res.Vuln.CVEID)
	if ferr != nil || winner == nil {
		return res, nil, fmt.Errorf("failed to re-resolve conflicting cve %s: %w", res.Vuln.CVEID, err)
	}
	merged := winner.Clone()
	changes := dedup.MergeRecord(merged, res.Vuln, now)
	p.scorer.Rescore(merged)

	outcome := dedup.OutcomeDuplicate
	if changes.Material {
		outcome = dedup.OutcomeUpdated
	}
	res = dedup.Resolution{Outcome: outcome, Vuln: merged, Changes: changes}

	// The winner already raised its own new_vulnerability alert, so the
	// loser's alerts are discarded and fresh ones derived from what the
	// fold-in actually changed.
	alerts = nil
	if outcome != dedup.OutcomeDuplicate {
		alerts, err = p.alerts.Evaluate(ctx, res)
		if err != nil {
			return res, nil, err
		}
	}
	return res, alerts, p.store.UpsertWithAlerts(ctx, merged, alerts)
}

func activeAlerts(alerts []*model.Alert) []*model.Alert {
	var out []*model.Alert
	for _, a := range alerts {
		if a.Status != model.AlertStatusSuppressed {
			out = append(out, a)
		}
	}
	return out
}
