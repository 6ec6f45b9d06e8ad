package database

import (
	"testing"

	"github.com/navdb/navdb/pkg/document"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir())
}

func mustCollection(t *testing.T, db *Database, name string) *Collection {
	t.Helper()
	if err := db.CreateCollection(name); err != nil {
		t.Fatalf("CreateCollection(%s): %v", name, err)
	}
	c, err := db.GetCollection(name)
	if err != nil {
		t.Fatalf("GetCollection(%s): %v", name, err)
	}
	return c
}

func doc(fields map[string]interface{}) *document.Document {
	d := document.New()
	if id, ok := fields["_id"]; ok {
		d.Set("_id", id)
	}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		d.Set(k, v)
	}
	return d
}

func TestS1BasicCRUD(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.CreateDatabase("store"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	db, err := reg.UseDatabase("store")
	if err != nil {
		t.Fatalf("UseDatabase: %v", err)
	}
	items := mustCollection(t, db, "items")

	if _, err := items.InsertOne(doc(map[string]interface{}{"_id": "a", "price": int64(10)})); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := items.InsertOne(doc(map[string]interface{}{"_id": "b", "price": int64(20)})); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	found, err := items.Find(map[string]interface{}{"price": map[string]interface{}{"$gt": int64(10)}})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 1 || found[0].ID() != "b" {
		t.Fatalf("find $gt 10 = %v", found)
	}

	if _, err := items.UpdateOne(map[string]interface{}{"_id": "a"}, map[string]interface{}{"$set": map[string]interface{}{"price": int64(15)}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := items.Find(map[string]interface{}{})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(all))
	}
	price, _ := all[0].Get("price")
	if price != int64(15) {
		t.Fatalf("a.price = %v, want 15", price)
	}
}

func TestS2IndexAcceleration(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")
	items := mustCollection(t, db, "items")

	cats := []string{"x", "y", "x"}
	for i, cat := range cats {
		items.InsertOne(doc(map[string]interface{}{"_id": string(rune('a' + i)), "category": cat}))
	}

	if err := items.CreateIndex("category"); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	items.EnableIndexing(true)

	found, err := items.Find(map[string]interface{}{"category": "x"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("indexed find(category=x) = %d docs, want 2", len(found))
	}

	items.EnableIndexing(false)
	found2, err := items.Find(map[string]interface{}{"category": "x"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found2) != len(found) {
		t.Fatalf("scan find = %d docs, indexed find = %d docs", len(found2), len(found))
	}
}

func TestS3TransactionCommit(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")
	c := mustCollection(t, db, "things")

	if _, err := db.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}

	if _, err := c.InsertOne(doc(map[string]interface{}{"_id": "t"})); err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := c.Find(map[string]interface{}{"_id": "t"})
	if err != nil || len(found) != 1 {
		t.Fatalf("in-tx find = %v, %v", found, err)
	}

	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reloaded, err := LoadCollection("things", c.path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reloaded.byID["t"]; !ok {
		t.Fatalf("committed document not found on disk")
	}
}

func TestS4TransactionRollback(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")
	c := mustCollection(t, db, "things")

	if _, err := c.InsertOne(doc(map[string]interface{}{"_id": "z", "v": int64(1)})); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	if _, err := db.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if _, err := c.UpdateOne(map[string]interface{}{"_id": "z"}, map[string]interface{}{"$set": map[string]interface{}{"v": int64(2)}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := c.DeleteOne(map[string]interface{}{"_id": "z"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	all, err := c.Find(map[string]interface{}{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("post-rollback doc count = %d, want 1", len(all))
	}
	v, _ := all[0].Get("v")
	if v != int64(1) {
		t.Fatalf("post-rollback v = %v, want 1", v)
	}
}

func TestBeginTransactionTwiceFails(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")

	if _, err := db.BeginTransaction(); err != nil {
		t.Fatalf("first BeginTransaction: %v", err)
	}
	if _, err := db.BeginTransaction(); err == nil {
		t.Fatalf("expected ProtocolError on nested begin")
	}
}

func TestDropDatabaseWithActiveTxFails(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")
	db.BeginTransaction()

	if err := reg.DropDatabase("store"); err == nil {
		t.Fatalf("expected DropDatabase to fail with an active transaction")
	}
}

func TestPushRequiresArrayTarget(t *testing.T) {
	reg := newTestRegistry(t)
	reg.CreateDatabase("store")
	db, _ := reg.UseDatabase("store")
	c := mustCollection(t, db, "things")

	c.InsertOne(doc(map[string]interface{}{"_id": "a", "tag": "solo"}))
	_, err := c.UpdateOne(map[string]interface{}{"_id": "a"}, map[string]interface{}{"$push": map[string]interface{}{"tag": "x"}})
	if err == nil {
		t.Fatalf("expected error pushing onto a non-array field")
	}
}
