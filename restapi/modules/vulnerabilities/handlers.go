// Package vulnerabilities implements the REST API handlers for vulnerability
// reads and remediation plan requests.
package vulnerabilities

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/model"
	"github.com/rickdeaconx/kirinvulndb/remediation"
)

// ListVulnerabilities handles GET requests for the vulnerability list with
// optional severity, tool, and recency filters.
func ListVulnerabilities(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := store.VulnerabilityFilter{
			Tool:  c.Query("tool"),
			Limit: c.QueryInt("limit", 50),
		}
		if severity := c.Query("severity"); severity != "" {
			sev := model.Severity(severity)
			if !sev.Valid() {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid severity: " + severity,
				})
			}
			f.Severity = sev
		}
		if hours := c.QueryInt("since_hours", 0); hours > 0 {
			since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
			f.Since = &since
		}

		vulns, err := s.ListVulnerabilities(c.UserContext(), f)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list vulnerabilities",
			})
		}
		return c.JSON(fiber.Map{
			"vulnerabilities": vulns,
			"count":           len(vulns),
		})
	}
}

// GetVulnerability handles GET requests for a single record by
// vulnerability_id or CVE.
func GetVulnerability(s store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		vuln, err := s.FindByVulnID(c.UserContext(), id)
		if err == nil && vuln == nil {
			vuln, err = s.FindByCVE(c.UserContext(), id)
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load vulnerability",
			})
		}
		if vuln == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "vulnerability not found",
			})
		}
		return c.JSON(vuln)
	}
}

// RequestRemediation handles POST requests for a fresh remediation plan.
func RequestRemediation(s store.Store, planner *remediation.Planner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Workspace string `json:"workspace"`
		}
		// The body is optional; workspace defaults to empty.
		_ = c.BodyParser(&req)

		vuln, err := s.FindByVulnID(c.UserContext(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load vulnerability",
			})
		}
		if vuln == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "vulnerability not found",
			})
		}

		plan := planner.Plan(vuln, req.Workspace)
		return c.Status(fiber.StatusCreated).JSON(plan)
	}
}

// GetRemediation handles GET requests for a cached remediation plan.
func GetRemediation(planner *remediation.Planner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plan := planner.Get(c.Params("remediationId"))
		if plan == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "remediation plan not found or expired",
			})
		}
		return c.JSON(plan)
	}
}
