package database

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/navdb/navdb/pkg/document"
)

// Database is a named container of collections plus a journal directory. It
// owns at most one active transaction at a time and is the single unit of
// serialization the concurrency model assumes (§5): callers must not
// interleave operations on the same Database concurrently.
type Database struct {
	mu sync.Mutex

	name string
	dir  string

	collections map[string]*Collection

	tx *activeTransaction
}

type activeTransaction struct {
	id      string
	journal *journal
	ops     []*OperationRecord
}

func journalDir(dbDir string) string {
	return filepath.Join(dbDir, ".transactions")
}

func collectionPath(dbDir, name string) string {
	return filepath.Join(dbDir, name+".json")
}

// openDatabase loads a Database rooted at dir, cleaning any stale
// transaction journals first (no replay, per §4.6/§9).
func openDatabase(name, dir string) (*Database, error) {
	if err := cleanupStaleJournals(journalDir(dir)); err != nil {
		return nil, wrapErr(KindIO, "use_db", "failed to clean stale transaction logs", err)
	}
	return &Database{
		name:        name,
		dir:         dir,
		collections: make(map[string]*Collection),
	}, nil
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// GetCollection returns a collection, loading it from disk on first
// reference. Returns NotFound if no such collection has ever been created.
func (db *Database) GetCollection(name string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getCollectionLocked(name)
}

func (db *Database) getCollectionLocked(name string) (*Collection, error) {
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	path := collectionPath(db.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, newErr(KindNotFound, "get_collection", "collection not found: "+name)
		}
		return nil, wrapErr(KindIO, "get_collection", "failed to stat collection file", err)
	}
	c, err := LoadCollection(name, path)
	if err != nil {
		return nil, err
	}
	if db.tx != nil {
		c.EnterTx(db.tx.id, db)
	}
	db.collections[name] = c
	return c, nil
}

// CreateCollection creates an empty collection file. If a transaction is
// active, the creation is also journaled (for rollback) but takes effect
// immediately either way.
func (db *Database) CreateCollection(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	path := collectionPath(db.dir, name)
	if _, ok := db.collections[name]; ok {
		return newErr(KindConflict, "create_collection", "collection already exists: "+name)
	}
	if _, err := os.Stat(path); err == nil {
		return newErr(KindConflict, "create_collection", "collection already exists: "+name)
	}
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		return wrapErr(KindIO, "create_collection", "failed to create collection file", err)
	}

	c := NewCollection(name, path)
	if db.tx != nil {
		c.EnterTx(db.tx.id, db)
		rec := newOperationRecord(OpCreateCollection, name)
		if err := db.logOperationLocked(rec); err != nil {
			return wrapErr(KindIO, "create_collection", "failed to journal operation", err)
		}
	}
	db.collections[name] = c
	return nil
}

// DropCollection removes a collection's file and registry entry. If a
// transaction is active, the current documents are snapshotted into the
// journal record so rollback can restore them.
func (db *Database) DropCollection(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, err := db.getCollectionLocked(name)
	if err != nil {
		return err
	}

	if db.tx != nil {
		rec := newOperationRecord(OpDropCollection, name)
		rec.Documents = c.Documents()
		if err := db.logOperationLocked(rec); err != nil {
			return wrapErr(KindIO, "drop_collection", "failed to journal operation", err)
		}
	}

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return wrapErr(KindIO, "drop_collection", "failed to remove collection file", err)
	}
	delete(db.collections, name)
	return nil
}

// ListCollections returns every collection name with a file on disk.
func (db *Database) ListCollections() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(db.dir, "*.json"))
	if err != nil {
		return nil, wrapErr(KindIO, "list_collections", "failed to list collection files", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, fileStem(m))
	}
	return names, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// --- Transaction coordinator ---

// BeginTransaction transitions Idle->Active, creating the transaction's
// journal file and installing transaction context on every collection
// currently resident in memory (collections loaded later during the
// transaction pick it up in getCollectionLocked).
func (db *Database) BeginTransaction() (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.tx != nil {
		return "", newErr(KindProtocol, "begin_transaction", "a transaction is already active")
	}
	id := NewID()
	j, err := newJournal(journalDir(db.dir), id)
	if err != nil {
		return "", wrapErr(KindIO, "begin_transaction", "failed to create journal file", err)
	}
	db.tx = &activeTransaction{id: id, journal: j}
	for _, c := range db.collections {
		c.EnterTx(id, db)
	}
	return id, nil
}

// LogOperation implements TxSink: it is called by a Collection mid-mutation
// while a transaction is active.
func (db *Database) LogOperation(rec *OperationRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.logOperationLocked(rec)
}

func (db *Database) logOperationLocked(rec *OperationRecord) error {
	if db.tx == nil {
		return newErr(KindProtocol, "log_operation", "no active transaction")
	}
	if err := db.tx.journal.Append(rec); err != nil {
		return err
	}
	db.tx.ops = append(db.tx.ops, rec)
	return nil
}

// Commit transitions Active->Idle, applying every buffered operation in
// order. The journal file is removed whether or not apply succeeds — a
// failure surfaces as FatalTransactionError and the transaction still
// terminates (no partial retry), matching §4.6.
func (db *Database) Commit() error {
	db.mu.Lock()
	tx := db.tx
	db.mu.Unlock()

	if tx == nil {
		return newErr(KindProtocol, "commit", "no active transaction")
	}

	var applyErr error
	for _, rec := range tx.ops {
		switch rec.Type {
		case OpInsert, OpUpdate, OpDelete:
			c, err := db.GetCollection(rec.Collection)
			if err != nil {
				applyErr = wrapErr(KindFatalTransaction, "commit", "collection vanished mid-commit", err)
				break
			}
			if err := c.Apply(rec); err != nil {
				applyErr = wrapErr(KindFatalTransaction, "commit", "failed to apply operation", err)
				break
			}
		default:
			// create_collection / drop_collection already took effect
			// immediately when issued; nothing further to apply.
		}
		if applyErr != nil {
			break
		}
	}

	db.endTransaction(tx)
	return applyErr
}

// Rollback transitions Active->Idle, undoing every buffered operation in
// reverse order.
func (db *Database) Rollback() error {
	db.mu.Lock()
	tx := db.tx
	db.mu.Unlock()

	if tx == nil {
		return newErr(KindProtocol, "rollback", "no active transaction")
	}

	var undoErr error
	for i := len(tx.ops) - 1; i >= 0; i-- {
		rec := tx.ops[i]
		switch rec.Type {
		case OpInsert, OpUpdate, OpDelete:
			c, err := db.GetCollection(rec.Collection)
			if err != nil {
				undoErr = wrapErr(KindFatalTransaction, "rollback", "collection vanished mid-rollback", err)
			} else if err := c.Undo(rec); err != nil {
				undoErr = err
			}
		case OpCreateCollection:
			undoErr = db.undoCreateCollection(rec.Collection)
		case OpDropCollection:
			undoErr = db.undoDropCollection(rec.Collection, rec.Documents)
		}
		if undoErr != nil {
			break
		}
	}

	db.endTransaction(tx)
	return undoErr
}

func (db *Database) undoCreateCollection(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.collections[name]
	if !ok {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return wrapErr(KindFatalTransaction, "rollback", "failed to remove created collection file", err)
	}
	delete(db.collections, name)
	return nil
}

func (db *Database) undoDropCollection(name string, docs []*document.Document) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	path := collectionPath(db.dir, name)
	c := NewCollection(name, path)
	for _, d := range docs {
		c.docs = append(c.docs, d)
		if id := d.ID(); id != "" {
			c.byID[id] = d
		}
	}
	if err := c.save(); err != nil {
		return wrapErr(KindFatalTransaction, "rollback", "failed to restore dropped collection", err)
	}
	db.collections[name] = c
	return nil
}

func (db *Database) endTransaction(tx *activeTransaction) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, c := range db.collections {
		c.ExitTx()
	}
	_ = tx.journal.Remove()
	db.tx = nil
}
