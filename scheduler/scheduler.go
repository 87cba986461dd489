// Package scheduler runs one polling worker per source, each with its own
// checkpoint, interval jitter, and failure backoff.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/pipeline"
)

// storeProbeInterval is how often a worker re-pings an unavailable store
// before resuming.
const storeProbeInterval = 15 * time.Second

// Config tunes the per-source workers.
type Config struct {
	// CycleBudget bounds one fetch-and-process cycle.
	CycleBudget time.Duration
	// MaxBackoff caps the failure backoff per source.
	MaxBackoff time.Duration
	// Jitter spreads cycle starts by up to this fraction of the interval in
	// either direction.
	Jitter float64
}

// Scheduler owns the polling workers. Sources never share a worker, so one
// slow or failing source cannot starve the others.
type Scheduler struct {
	collectors []collector.Collector
	pipeline   *pipeline.Pipeline
	store      store.Store
	cfg        Config
	logger     *zap.SugaredLogger
}

func New(collectors []collector.Collector, p *pipeline.Pipeline, s store.Store, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		collectors: collectors,
		pipeline:   p,
		store:      s,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks until the context is cancelled, then returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, col := range s.collectors {
		col := col
		g.Go(func() error {
			return s.runSource(ctx, col)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runSource(ctx context.Context, col collector.Collector) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 30 * time.Second
	retry.MaxInterval = s.cfg.MaxBackoff
	retry.MaxElapsedTime = 0
	retry.Reset()

	// First cycle fires after a short jittered delay so workers do not
	// stampede the sources at startup.
	wait := s.jittered(col.Interval() / 10)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := s.cycle(ctx, col); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch {
			case errors.Is(err, store.ErrUnavailable):
				s.logger.Warnf("%s: store unavailable, pausing worker", col.Name())
				if err := s.waitForStore(ctx); err != nil {
					return err
				}
				wait = s.jittered(col.Interval() / 10)
			case errors.Is(err, collector.ErrSourceUnavailable):
				wait = retry.NextBackOff()
				s.logger.Warnf("%s: source unavailable, retrying in %s: %v", col.Name(), wait, err)
			default:
				wait = retry.NextBackOff()
				s.logger.Errorf("%s: cycle failed, retrying in %s: %v", col.Name(), wait, err)
			}
			continue
		}

		retry.Reset()
		wait = s.jittered(col.Interval())
	}
}

// cycle runs one fetch-and-process pass under the cycle budget. The
// checkpoint only advances after the whole batch persisted, so a crash or
// failure replays records rather than losing them.
func (s *Scheduler) cycle(ctx context.Context, col collector.Collector) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleBudget)
	defer cancel()

	since, err := s.store.LoadCheckpoint(cctx, col.Name())
	if err != nil {
		return err
	}

	// The next checkpoint is taken before the fetch: anything published
	// while the fetch runs lands in the next cycle instead of a gap.
	cycleStart := time.Now().UTC()

	records, err := col.Fetch(cctx, since)
	if err != nil {
		return err
	}

	stats, err := s.pipeline.Process(cctx, records)
	if err != nil {
		return err
	}
	if stats.Processed+stats.Dropped > 0 {
		s.logger.Infof("%s: processed=%d new=%d updated=%d duplicate=%d dropped=%d alerts=%d",
			col.Name(), stats.Processed, stats.New, stats.Updated, stats.Duplicates, stats.Dropped, stats.Alerts)
	}

	return s.store.SaveCheckpoint(cctx, col.Name(), cycleStart)
}

// waitForStore blocks until the store answers a ping or the context ends.
func (s *Scheduler) waitForStore(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(storeProbeInterval):
		}
		if err := s.store.Ping(ctx); err == nil {
			s.logger.Info("store reachable again, resuming workers")
			return nil
		}
	}
}

// jittered spreads an interval by the configured fraction in either
// direction.
func (s *Scheduler) jittered(d time.Duration) time.Duration {
	if s.cfg.Jitter <= 0 || d <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * s.cfg.Jitter // #nosec G404 -- scheduling jitter
	return time.Duration(float64(d) * (1 + delta))
}
