package database

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a database or collection name against the required
// pattern, failing before any I/O.
func ValidateName(name string) error {
	if name == "" || !nameRE.MatchString(name) {
		return newErr(KindValidation, "validate_name", "name must be non-empty and match [A-Za-z0-9_-]+")
	}
	return nil
}

// Registry owns every open Database under one "db/" root directory.
type Registry struct {
	mu        sync.Mutex
	root      string
	databases map[string]*Database
}

// NewRegistry roots a registry at baseDir/db.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		root:      filepath.Join(baseDir, "db"),
		databases: make(map[string]*Database),
	}
}

func (r *Registry) dbDir(name string) string {
	return filepath.Join(r.root, name)
}

// CreateDatabase makes a new, empty database directory.
func (r *Registry) CreateDatabase(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.dbDir(name)
	if _, err := os.Stat(dir); err == nil {
		return newErr(KindConflict, "create_db", "database already exists: "+name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapErr(KindIO, "create_db", "failed to create database directory", err)
	}
	return nil
}

// DropDatabase deletes a database directory. Fails with ProtocolError if
// that database has an active transaction.
func (r *Registry) DropDatabase(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.databases[name]; ok {
		db.mu.Lock()
		active := db.tx != nil
		db.mu.Unlock()
		if active {
			return newErr(KindProtocol, "drop_db", "cannot drop database with an active transaction")
		}
	}

	dir := r.dbDir(name)
	if _, err := os.Stat(dir); err != nil {
		return newErr(KindNotFound, "drop_db", "database not found: "+name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return wrapErr(KindIO, "drop_db", "failed to remove database directory", err)
	}
	delete(r.databases, name)
	return nil
}

// UseDatabase opens (loading lazily, caching for the registry's lifetime) a
// database by name.
func (r *Registry) UseDatabase(name string) (*Database, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.databases[name]; ok {
		return db, nil
	}
	dir := r.dbDir(name)
	if _, err := os.Stat(dir); err != nil {
		return nil, newErr(KindNotFound, "use_db", "database not found: "+name)
	}
	db, err := openDatabase(name, dir)
	if err != nil {
		return nil, err
	}
	r.databases[name] = db
	return db, nil
}

// ListDatabases returns every database directory name under the registry root.
func (r *Registry) ListDatabases() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapErr(KindIO, "list_databases", "failed to list database directories", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
