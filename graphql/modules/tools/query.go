package tools

import (
	"github.com/graphql-go/graphql"

	"github.com/rickdeaconx/kirinvulndb/internal/store"
)

// GetQueryFields returns the tool registry queries to be mounted in the root
// schema.
func GetQueryFields(s store.Store) graphql.Fields {
	return graphql.Fields{
		"monitoredTools": &graphql.Field{
			Type: graphql.NewList(ToolType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return ResolveMonitoredTools(p.Context, s)
			},
		},
	}
}
