package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
	"github.com/rickdeaconx/kirinvulndb/notify"
	"github.com/rickdeaconx/kirinvulndb/remediation"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/admin"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/alerts"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/monitoring"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/stream"
	"github.com/rickdeaconx/kirinvulndb/restapi/modules/vulnerabilities"
)

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	Store      store.Store
	Hub        *notify.Hub
	Planner    *remediation.Planner
	Backfiller *admin.Backfiller
	Sources    []monitoring.SourceInfo
	Logger     *zap.SugaredLogger
}

// SetupRoutes configures all REST API routes, the GraphQL endpoint, and the
// WebSocket stream.
func SetupRoutes(app *fiber.App, deps Dependencies, schema graphql.Schema) {
	api := app.Group("/api/v1")

	api.Post("/graphql", GraphQLHandler(schema))

	vulnGroup := api.Group("/vulnerabilities")
	vulnGroup.Get("/", vulnerabilities.ListVulnerabilities(deps.Store))
	vulnGroup.Get("/:id", vulnerabilities.GetVulnerability(deps.Store))
	vulnGroup.Post("/:id/remediation", vulnerabilities.RequestRemediation(deps.Store, deps.Planner))

	api.Get("/remediation/:remediationId", vulnerabilities.GetRemediation(deps.Planner))

	alertGroup := api.Group("/alerts")
	alertGroup.Get("/", alerts.ListRecent(deps.Store))
	alertGroup.Post("/:alertId/acknowledge", alerts.Acknowledge(deps.Store))
	alertGroup.Post("/:alertId/resolve", alerts.Resolve(deps.Store))

	monitorGroup := api.Group("/monitoring")
	monitorGroup.Get("/status", monitoring.Status(deps.Store, deps.Hub, deps.Sources))
	monitorGroup.Get("/stats", monitoring.DatabaseStats(deps.Store))
	monitorGroup.Get("/tools", monitoring.ListTools(deps.Store))

	if deps.Backfiller != nil {
		adminGroup := api.Group("/admin")
		adminGroup.Post("/backfill", deps.Backfiller.PostBackfill())
		adminGroup.Get("/backfill/status", deps.Backfiller.GetBackfillStatus())
	}

	api.Use("/stream", stream.Upgrade)
	api.Get("/stream", stream.Handler(deps.Hub, deps.Logger))
}
