// Package engine is the composition root described in SPEC_FULL.md
// §4.11: it maps a parsed query.Operation to the auth.Capability it
// requires, denies before dispatch when the caller's role lacks it,
// and otherwise routes the operation to pkg/database/pkg/backup,
// logging the outcome either way.
package engine

import (
	"fmt"
	"time"

	"github.com/navdb/navdb/pkg/auth"
	"github.com/navdb/navdb/pkg/backup"
	"github.com/navdb/navdb/pkg/database"
	"github.com/navdb/navdb/pkg/document"
	"github.com/navdb/navdb/pkg/logging"
	"github.com/navdb/navdb/pkg/query"
)

// Engine owns every collaborator a session needs to execute operations:
// the database registry, the access-control guard, the backup manager,
// and the operation log.
type Engine struct {
	registry *database.Registry
	guard    *auth.Guard
	backups  *backup.Manager
	log      logging.Sink
}

// New builds an Engine. log may be nil, in which case outcomes are
// simply not recorded.
func New(registry *database.Registry, guard *auth.Guard, backups *backup.Manager, log logging.Sink) *Engine {
	return &Engine{registry: registry, guard: guard, backups: backups, log: log}
}

// NewSession starts a connection-scoped session for principal. A
// session remembers which database is selected across calls the way a
// real client connection does, since query.Operation itself carries no
// database field.
func (e *Engine) NewSession(principal auth.Principal) *Session {
	return &Session{engine: e, principal: principal}
}

// Session is one client connection's state against an Engine.
type Session struct {
	engine      *Engine
	principal   auth.Principal
	currentName string
	current     *database.Database
}

// Execute runs op under this session, denying it up front if the
// session's principal lacks the capability op requires.
func (s *Session) Execute(op *query.Operation) (interface{}, error) {
	start := time.Now()
	result, err := s.dispatch(op)
	s.engine.record(op, s.principal, s.currentName, start, err)
	return result, err
}

func (e *Engine) record(op *query.Operation, principal auth.Principal, dbName string, start time.Time, err error) {
	if e.log == nil {
		return
	}
	status := logging.StatusOK
	message := ""
	if err != nil {
		message = err.Error()
		if err == auth.ErrPermissionDenied {
			status = logging.StatusDenied
		} else {
			status = logging.StatusError
		}
	}
	e.log.Log(logging.Event{
		Timestamp:  time.Now(),
		Category:   string(op.Kind),
		Database:   dbName,
		Collection: op.Collection,
		User:       principal.Username,
		Status:     status,
		Message:    message,
		Duration:   time.Since(start),
	})
}

func (s *Session) dispatch(op *query.Operation) (interface{}, error) {
	capability, ok := auth.RequiredCapability(string(op.Kind))
	if !ok {
		return nil, fmt.Errorf("engine: unrecognized operation kind %q", op.Kind)
	}
	if err := s.engine.guard.Check(s.principal, capability); err != nil {
		return nil, err
	}

	switch op.Kind {
	case query.KindCreateDB:
		return nil, s.engine.registry.CreateDatabase(op.Name)
	case query.KindDropDB:
		return nil, s.engine.registry.DropDatabase(op.Name)
	case query.KindUseDB:
		db, err := s.engine.registry.UseDatabase(op.Name)
		if err != nil {
			return nil, err
		}
		s.current = db
		s.currentName = op.Name
		return nil, nil
	case query.KindBeginTx:
		return s.requireDB(func(db *database.Database) (interface{}, error) {
			return db.BeginTransaction()
		})
	case query.KindCommit:
		return s.requireDB(func(db *database.Database) (interface{}, error) {
			return nil, db.Commit()
		})
	case query.KindRollback:
		return s.requireDB(func(db *database.Database) (interface{}, error) {
			return nil, db.Rollback()
		})
	case query.KindCreateCollection:
		return s.requireDB(func(db *database.Database) (interface{}, error) {
			return nil, db.CreateCollection(op.Name)
		})
	case query.KindDropCollection:
		return s.requireDB(func(db *database.Database) (interface{}, error) {
			return nil, db.DropCollection(op.Name)
		})
	case query.KindCreateIndex:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			return nil, c.CreateIndex(op.Field)
		})
	case query.KindListIndexes:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			return c.ListIndexes(), nil
		})
	case query.KindEnableIndexing:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			c.EnableIndexing(op.Enable)
			return nil, nil
		})
	case query.KindInsert:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			return c.InsertOne(document.FromMap(op.Document))
		})
	case query.KindInsertMany:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			docs := make([]*document.Document, 0, len(op.Documents))
			for _, m := range op.Documents {
				docs = append(docs, document.FromMap(m))
			}
			return c.InsertMany(docs)
		})
	case query.KindUpdate:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			if op.All {
				return c.UpdateMany(op.Filter, op.Update)
			}
			return c.UpdateOne(op.Filter, op.Update)
		})
	case query.KindDelete:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			if op.All {
				return c.DeleteMany(op.Filter)
			}
			return c.DeleteOne(op.Filter)
		})
	case query.KindFind:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			return c.Find(op.Filter)
		})
	case query.KindAggregate:
		return s.requireCollection(op, func(c *database.Collection) (interface{}, error) {
			return c.Aggregate(op.Pipeline)
		})
	case query.KindBackup:
		return s.engine.backups.Create(op.Name)
	case query.KindRestore:
		return nil, s.engine.backups.Restore(op.Name, "")
	default:
		return nil, fmt.Errorf("engine: unhandled operation kind %q", op.Kind)
	}
}

func (s *Session) requireDB(fn func(db *database.Database) (interface{}, error)) (interface{}, error) {
	if s.current == nil {
		return nil, fmt.Errorf("engine: no database selected")
	}
	return fn(s.current)
}

func (s *Session) requireCollection(op *query.Operation, fn func(c *database.Collection) (interface{}, error)) (interface{}, error) {
	if s.current == nil {
		return nil, fmt.Errorf("engine: no database selected")
	}
	c, err := s.current.GetCollection(op.Collection)
	if err != nil {
		return nil, err
	}
	return fn(c)
}
