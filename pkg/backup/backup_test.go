package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func seedDatabase(t *testing.T, baseDir, name string) {
	t.Helper()
	dir := filepath.Join(baseDir, "db", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "widgets.json"), []byte(`[{"_id":"a"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCreateThenRestoreRoundTrip(t *testing.T) {
	base := t.TempDir()
	seedDatabase(t, base, "shop")

	m := NewManager(base)
	archivePath, err := m.Create("shop")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("archive not written: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(base, "db", "shop")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if err := m.Restore("shop", ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "db", "shop", "widgets.json"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != `[{"_id":"a"}]` {
		t.Fatalf("restored content = %q", data)
	}
}

func TestListNewestFirst(t *testing.T) {
	base := t.TempDir()
	seedDatabase(t, base, "shop")
	m := NewManager(base)

	newest, err := m.Create("shop")
	if err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	older := filepath.Join(base, "backups", "shop_20000101_000000.zip")
	if err := os.WriteFile(older, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	infos, err := m.List("shop")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Database != "shop" || infos[0].Path != newest || infos[1].Path != older {
		t.Fatalf("List = %+v", infos)
	}
}

func TestRestoreMissingDatabaseFails(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base)
	if err := m.Restore("ghost", ""); err == nil {
		t.Fatalf("expected error restoring a database with no backups")
	}
}
