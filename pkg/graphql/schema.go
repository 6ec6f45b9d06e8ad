package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/navdb/navdb/pkg/engine"
)

// Schema builds the GraphQL schema exposing navdb's read path: "find"
// and "aggregate", the two query-side operations SPEC_FULL.md's REST
// section names for this surface.
func Schema(eng *engine.Engine) (graphql.Schema, error) {
	resolver := NewResolver(eng)

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Query",
		Description: "Root query type for navdb",
		Fields: graphql.Fields{
			"find": &graphql.Field{
				Type:        graphql.NewList(JSONScalar),
				Description: "Find documents matching a filter",
				Args: graphql.FieldConfigArgument{
					"database": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Database name",
					},
					"collection": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Collection name",
					},
					"filter": &graphql.ArgumentConfig{
						Type:        JSONScalar,
						Description: "Query filter as JSON",
					},
				},
				Resolve: resolver.Find,
			},
			"aggregate": &graphql.Field{
				Type:        graphql.NewList(JSONScalar),
				Description: "Run an aggregation pipeline",
				Args: graphql.FieldConfigArgument{
					"database": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Database name",
					},
					"collection": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Collection name",
					},
					"pipeline": &graphql.ArgumentConfig{
						Type:        graphql.NewList(JSONScalar),
						Description: "Aggregation pipeline stages",
					},
				},
				Resolve: resolver.Aggregate,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}
	return schema, nil
}
