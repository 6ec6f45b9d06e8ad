package engine

import (
	"testing"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/backup"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/query"
)

func newTestEngine(t *testing.T) (*Engine, auth.Principal) {
	t.Helper()
	dir := t.TempDir()
	registry := database.NewRegistry(dir)
	manager := auth.NewManager()
	guard := auth.NewGuard(manager)
	backups := backup.NewManager(dir)
	e := New(registry, guard, backups, nil)
	return e, auth.Principal{Username: "admin", Role: auth.RoleAdmin}
}

func TestSessionCRUDRoundTrip(t *testing.T) {
	e, admin := newTestEngine(t)
	s := e.NewSession(admin)

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

	result, err := s.Execute(&query.Operation{
		Kind:       query.KindFind,
		Collection: "items",
		Filter:     map[string]interface{}{"_id": "a"},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	docs, ok := result.([]*document.Document)
	if !ok || len(docs) != 1 {
		t.Fatalf("find result = %+v", result)
	}
}

func TestSessionDeniesReadOnlyInsert(t *testing.T) {
	e, _ := newTestEngine(t)
	manager := auth.NewManager()
	manager.CreateUser("viewer", "pw", auth.RoleRead)
	guard := auth.NewGuard(manager)
	e.guard = guard

	s := e.NewSession(auth.Principal{Username: "viewer", Role: auth.RoleRead})
	if _, err := s.Execute(&query.Operation{Kind: query.KindInsert, Collection: "items", Document: map[string]interface{}{}}); err == nil {
		t.Fatalf("expected read-role insert to be denied")
	}
}

func TestSessionRequiresSelectedDatabase(t *testing.T) {
	e, admin := newTestEngine(t)
	s := e.NewSession(admin)
	if _, err := s.Execute(&query.Operation{Kind: query.KindCreateCollection, Name: "items"}); err == nil {
		t.Fatalf("expected error creating a collection with no database selected")
	}
}
