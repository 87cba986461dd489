// Package stats defines the GraphQL types and queries for database-wide
// monitoring figures.
package stats

import (
	"github.com/graphql-go/graphql"
)

// SeverityCountsType represents the per-severity record counts.
var SeverityCountsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SeverityCounts",
	Fields: graphql.Fields{
		"critical": &graphql.Field{Type: graphql.Int},
		"high":     &graphql.Field{Type: graphql.Int},
		"medium":   &graphql.Field{Type: graphql.Int},
		"low":      &graphql.Field{Type: graphql.Int},
		"info":     &graphql.Field{Type: graphql.Int},
	},
})

// StatsOverviewType represents the top-line database figures.
var StatsOverviewType = graphql.NewObject(graphql.ObjectConfig{
	Name: "StatsOverview",
	Fields: graphql.Fields{
		"total_vulnerabilities": &graphql.Field{Type: graphql.Int},
		"by_severity":           &graphql.Field{Type: SeverityCountsType},
		"exploited_in_wild":     &graphql.Field{Type: graphql.Int},
		"unpatched":             &graphql.Field{Type: graphql.Int},
		"last_updated":          &graphql.Field{Type: graphql.DateTime},
	},
})

// AlertType mirrors a dispatched alert.
var AlertType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Alert",
	Fields: graphql.Fields{
		"alert_id":         &graphql.Field{Type: graphql.String},
		"vulnerability_id": &graphql.Field{Type: graphql.String},
		"alert_type":       &graphql.Field{Type: graphql.String},
		"priority":         &graphql.Field{Type: graphql.String},
		"status":           &graphql.Field{Type: graphql.String},
		"title":            &graphql.Field{Type: graphql.String},
		"created_at":       &graphql.Field{Type: graphql.DateTime},
	},
})
