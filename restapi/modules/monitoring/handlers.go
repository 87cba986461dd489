// Package monitoring implements the REST API handlers for service health and
// database statistics.
package monitoring

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/notify"
)

// SourceStatus describes one collection source for the status endpoint.
type SourceStatus struct {
	Name           string     `json:"name"`
	IntervalSec    int        `json:"interval_seconds"`
	LastCheckpoint *time.Time `json:"last_checkpoint,omitempty"`
}

// SourceInfo is the static description the status handler enriches with
// checkpoints.
type SourceInfo struct {
	Name     string
	Interval time.Duration
}

// Status handles GET requests for overall service status: store health,
// per-source checkpoints, and stream subscribers.
func Status(s store.Store, hub *notify.Hub, sources []SourceInfo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeHealthy := s.Ping(c.UserContext()) == nil

		statuses := make([]SourceStatus, 0, len(sources))
		for _, src := range sources {
			st := SourceStatus{
				Name:        src.Name,
				IntervalSec: int(src.Interval.Seconds()),
			}
			if cp, err := s.LoadCheckpoint(c.UserContext(), src.Name); err == nil {
				st.LastCheckpoint = cp
			}
			statuses = append(statuses, st)
		}

		return c.JSON(fiber.Map{
			"status":         healthWord(storeHealthy),
			"store_healthy":  storeHealthy,
			"sources":        statuses,
			"stream_clients": hub.ClientCount(),
			"time":           time.Now().UTC(),
		})
	}
}

// DatabaseStats handles GET requests for record aggregates.
func DatabaseStats(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := s.Stats(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load stats",
			})
		}
		return c.JSON(stats)
	}
}

// ListTools handles GET requests for the monitored tool registry.
func ListTools(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tools, err := s.ListTools(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load tools",
			})
		}
		return c.JSON(fiber.Map{
			"tools": tools,
			"count": len(tools),
		})
	}
}

func healthWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "degraded"
}
