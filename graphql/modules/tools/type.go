// Package tools defines the GraphQL surface for the monitored assistant
// registry.
package tools

import (
	"github.com/graphql-go/graphql"
)

// ToolType represents one monitored AI coding assistant.
var ToolType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Tool",
	Fields: graphql.Fields{
		"name":                     &graphql.Field{Type: graphql.String},
		"display_name":             &graphql.Field{Type: graphql.String},
		"vendor":                   &graphql.Field{Type: graphql.String},
		"category":                 &graphql.Field{Type: graphql.String},
		"keywords":                 &graphql.Field{Type: graphql.NewList(graphql.String)},
		"current_version":          &graphql.Field{Type: graphql.String},
		"total_vulnerabilities":    &graphql.Field{Type: graphql.Int},
		"critical_vulnerabilities": &graphql.Field{Type: graphql.Int},
		"last_vulnerability_date":  &graphql.Field{Type: graphql.DateTime},
		"open_vulnerabilities":     &graphql.Field{Type: graphql.Int},
	},
})
