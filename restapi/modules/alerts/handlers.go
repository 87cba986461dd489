// Package alerts implements the REST API handlers for alert lifecycle
// operations.
package alerts

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
)

// ListRecent handles GET requests for the newest alerts.
func ListRecent(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		alerts, err := s.RecentAlerts(c.UserContext(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list alerts",
			})
		}
		return c.JSON(fiber.Map{
			"alerts": alerts,
			"count":  len(alerts),
		})
	}
}

// Acknowledge handles POST requests marking an alert acknowledged.
func Acknowledge(s store.Store) fiber.Handler {
	return updateStatus(s, model.AlertStatusAcknowledged)
}

// Resolve handles POST requests marking an alert resolved.
func Resolve(s store.Store) fiber.Handler {
	return updateStatus(s, model.AlertStatusResolved)
}

func updateStatus(s store.Store, status model.AlertStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		alertID := c.Params("alertId")
		if err := s.UpdateAlertStatus(c.UserContext(), alertID, status); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update alert",
			})
		}
		return c.JSON(fiber.Map{
			"alert_id": alertID,
			"status":   status,
		})
	}
}
