// Package graphql assembles the root schema from the query modules.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/rickdeaconx/kirinvulndb/graphql/modules/stats"
	"github.com/rickdeaconx/kirinvulndb/graphql/modules/tools"
	"github.com/rickdeaconx/kirinvulndb/graphql/modules/vulnerabilities"
	"github.com/rickdeaconx/kirinvulndb/internal/store"
)

// CreateSchema builds the root query schema over the given store.
func CreateSchema(s store.Store) (graphql.Schema, error) {
	fields := graphql.Fields{}
	for name, field := range vulnerabilities.GetQueryFields(s) {
		fields[name] = field
	}
	for name, field := range stats.GetQueryFields(s) {
		fields[name] = field
	}
	for name, field := range tools.GetQueryFields(s) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}
