// Package api wires the Fiber application serving the REST, GraphQL, and
// WebSocket surfaces.
package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	gqlschema "github.com/rickdeaconx/kirinvulndb/graphql"
	"github.com/rickdeaconx/kirinvulndb/restapi"
)

// NewFiberApp creates and configures a Fiber app with REST, GraphQL, and
// stream routes.
func NewFiberApp(deps restapi.Dependencies) (*fiber.App, error) {
	schema, err := gqlschema.CreateSchema(deps.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:     "kirinvulndb API v1.0",
		ReadTimeout: 60 * time.Second,
	})

	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://127.0.0.1:3000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowMethods: "GET, POST, HEAD, PUT, DELETE, PATCH, OPTIONS",
	}))
	app.Use(logger.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	restapi.SetupRoutes(app, deps, schema)

	return app, nil
}
