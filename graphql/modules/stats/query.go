package stats

import (
	"github.com/graphql-go/graphql"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
)

// GetQueryFields returns the monitoring queries to be mounted in the root
// schema.
func GetQueryFields(s store.Store) graphql.Fields {
	return graphql.Fields{
		"statsOverview": &graphql.Field{
			Type: StatsOverviewType,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveOverview(p.Context, s)
			},
		},
		"recentAlerts": &graphql.Field{
			Type: graphql.NewList(AlertType),
			Args: graphql.FieldConfigArgument{
				"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				limit := p.Args["limit"].(int)
				return ResolveRecentAlerts(p.Context, s, limit)
			},
		},
	}
}
