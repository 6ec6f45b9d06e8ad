package graphql

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/backup"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/engine"
	"github.com/navdb/navdb/pkg/query"
)

func newTestSchema(t *testing.T) (graphql.Schema, context.Context) {
	t.Helper()
	dir := t.TempDir()
	registry := database.NewRegistry(dir)
	manager := auth.NewManager()
	guard := auth.NewGuard(manager)
	backups := backup.NewManager(dir)
	eng := engine.New(registry, guard, backups, nil)

	principal := auth.Principal{Username: "admin", Role: auth.RoleAdmin}
	s := eng.NewSession(principal)
	if _, err := s.Execute(&query.Operation{Kind: query.KindCreateDB, Name: "store"}); err != nil {
		t.Fatalf("create_db: %v", err)
	}
	if _, err := s.Execute(&query.Operation{Kind: query.KindUseDB, Name: "store"}); err != nil {
		t.Fatalf("use_db: %v", err)
	}
	if _, err := s.Execute(&query.Operation{Kind: query.KindCreateCollection, Name: "items"}); err != nil {
		t.Fatalf("create_collection: %v", err)
	}
	if _, err := s.Execute(&query.Operation{
		Kind:       query.KindInsert,
		Collection: "items",
		Document:   map[string]interface{}{"_id": "a", "price": int64(10)},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	schema, err := Schema(eng)
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	ctx := auth.NewContext(context.Background(), principal)
	return schema, ctx
}

func TestFindQuery(t *testing.T) {
	schema, ctx := newTestSchema(t)

	result := graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: `query { find(database: "store", collection: "items", filter: {}) }`,
		Context:       ctx,
	})
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected GraphQL errors: %v", result.Errors)
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("result.Data = %+v", result.Data)
	}
	docs, ok := data["find"].([]interface{})
	if !ok || len(docs) != 1 {
		t.Fatalf("find = %+v", data["find"])
	}
}
