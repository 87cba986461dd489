// Package vulnerabilities defines the GraphQL types and queries for
// vulnerability data.
package vulnerabilities

import (
	"github.com/graphql-go/graphql"
)

// VulnerabilityType mirrors the canonical vulnerability record.
var VulnerabilityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Vulnerability",
	Fields: graphql.Fields{
		"vulnerability_id":            &graphql.Field{Type: graphql.String},
		"cve_id":                      &graphql.Field{Type: graphql.String},
		"title":                       &graphql.Field{Type: graphql.String},
		"description":                 &graphql.Field{Type: graphql.String},
		"severity":                    &graphql.Field{Type: graphql.String},
		"cvss_score":                  &graphql.Field{Type: graphql.Float},
		"cvss_vector":                 &graphql.Field{Type: graphql.String},
		"confidence_score":            &graphql.Field{Type: graphql.Float},
		"attack_vectors":              &graphql.Field{Type: graphql.NewList(graphql.String)},
		"affected_tools":              &graphql.Field{Type: graphql.NewList(graphql.String)},
		"patch_status":                &graphql.Field{Type: graphql.String},
		"fixed_version":               &graphql.Field{Type: graphql.String},
		"kirin_remediation_available": &graphql.Field{Type: graphql.Boolean},
		"auto_remediation_possible":   &graphql.Field{Type: graphql.Boolean},
		"references":                  &graphql.Field{Type: graphql.NewList(graphql.String)},
		"poc_available":               &graphql.Field{Type: graphql.Boolean},
		"exploit_in_wild":             &graphql.Field{Type: graphql.Boolean},
		"discovery_date":              &graphql.Field{Type: graphql.DateTime},
		"created_at":                  &graphql.Field{Type: graphql.DateTime},
		"updated_at":                  &graphql.Field{Type: graphql.DateTime},
	},
})
