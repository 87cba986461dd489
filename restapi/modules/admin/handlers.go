// Package admin implements the REST API handlers for operational tasks:
// triggering a historical backfill across the collection sources and watching
// its progress.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/collector"
	"github.com/rickdeaconx/kirinvulndb/pipeline"
)

// BackfillRequest is the body of a backfill trigger.
type BackfillRequest struct {
	DaysBack int `json:"days_back"`
}

// BackfillStatusResponse reports whether a backfill is running and how far it
// has come.
type BackfillStatusResponse struct {
	Running bool   `json:"running"`
	Status  string `json:"status"`
}

// Backfiller re-fetches historical advisories from every source and runs them
// through the regular pipeline. Replayed records resolve as duplicates, so a
// backfill is safe to run against a populated database.
type Backfiller struct {
	collectors []collector.Collector
	pipeline   *pipeline.Pipeline
	logger     *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	progress string
}

func NewBackfiller(collectors []collector.Collector, p *pipeline.Pipeline, logger *zap.SugaredLogger) *Backfiller {
	return &Backfiller{
		collectors: collectors,
		pipeline:   p,
		logger:     logger,
	}
}

// PostBackfill starts a backfill over the requested number of days.
func (b *Backfiller) PostBackfill() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req BackfillRequest
		if err := c.BodyParser(&req); err != nil || req.DaysBack == 0 {
			req.DaysBack = 90
		}
		if req.DaysBack < 0 || req.DaysBack > 365 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "days_back must be between 1 and 365",
			})
		}

		b.mu.Lock()
		if b.running {
			status := b.progress
			b.mu.Unlock()
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Backfill already in progress",
				"status":  status,
			})
		}
		b.running = true
		b.progress = fmt.Sprintf("Starting backfill for %d days", req.DaysBack)
		b.mu.Unlock()

		go b.run(req.DaysBack)

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Backfill started for %d days of history", req.DaysBack),
			"status":  "processing",
		})
	}
}

// GetBackfillStatus returns the current status of any running backfill.
func (b *Backfiller) GetBackfillStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		b.mu.Lock()
		resp := BackfillStatusResponse{Running: b.running, Status: b.progress}
		b.mu.Unlock()
		return c.JSON(resp)
	}
}

func (b *Backfiller) run(daysBack int) {
	ctx := context.Background()
	since := time.Now().UTC().AddDate(0, 0, -daysBack)
	b.logger.Infof("starting backfill across %d sources since %s", len(b.collectors), since.Format(time.RFC3339))

	var processed, failed int
	for i, col := range b.collectors {
		b.setProgress(fmt.Sprintf("Fetching source %d/%d: %s", i+1, len(b.collectors), col.Name()))

		records, err := col.Fetch(ctx, &since)
		if err != nil {
			b.logger.Warnf("backfill fetch failed for %s: %v", col.Name(), err)
			failed++
			continue
		}

		stats, err := b.pipeline.Process(ctx, records)
		if err != nil {
			b.logger.Warnf("backfill processing failed for %s: %v", col.Name(), err)
			failed++
			continue
		}
		processed += stats.Processed
	}

	b.mu.Lock()
	b.progress = fmt.Sprintf("Complete! Processed: %d records, failed sources: %d", processed, failed)
	b.running = false
	b.mu.Unlock()
	b.logger.Infof("backfill complete, processed=%d failedSources=%d", processed, failed)
}

func (b *Backfiller) setProgress(status string) {
	b.mu.Lock()
	b.progress = status
	b.mu.Unlock()
}
