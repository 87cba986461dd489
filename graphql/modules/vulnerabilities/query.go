package vulnerabilities

import (
	"github.com/graphql-go/graphql"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
)

// GetQueryFields returns the vulnerability queries to be mounted in the root
// schema.
func GetQueryFields(s store.Store) graphql.Fields {
	return graphql.Fields{
		"vulnerabilities": &graphql.Field{
			Type: graphql.NewList(VulnerabilityType),
			Args: graphql.FieldConfigArgument{
				"severity":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				"tool":        &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				"since_hours": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				severity := p.Args["severity"].(string)
				tool := p.Args["tool"].(string)
				sinceHours := p.Args["since_hours"].(int)
				limit := p.Args["limit"].(int)
				return ResolveVulnerabilities(p.Context, s, severity, tool, sinceHours, limit)
			},
		},
		"vulnerability": &graphql.Field{
			Type: VulnerabilityType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id := p.Args["id"].(string)
				return ResolveVulnerability(p.Context, s, id)
			},
		},
	}
}
