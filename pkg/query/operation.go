package query

import "github.com/navdb/navdb/pkg/document"

// Kind names one of the structured operations the parser produces.
type Kind string

const (
	KindBeginTx          Kind = "begin_transaction"
	KindCommit           Kind = "commit"
	KindRollback         Kind = "rollback"
	KindCreateDB         Kind = "create_db"
	KindDropDB           Kind = "drop_db"
	KindUseDB            Kind = "use_db"
	KindCreateCollection Kind = "create_collection"
	KindDropCollection   Kind = "drop_collection"
	KindCreateIndex      Kind = "create_index"
	KindListIndexes      Kind = "list_indexes"
	KindEnableIndexing   Kind = "enable_indexing"
	KindInsert           Kind = "insert"
	KindInsertMany       Kind = "insert_many"
	KindUpdate           Kind = "update"
	KindDelete           Kind = "delete"
	KindFind             Kind = "find"
	KindAggregate        Kind = "aggregate"
	KindBackup           Kind = "backup"
	KindRestore          Kind = "restore"
)

// Operation is a fully structured, parsed command ready for dispatch by
// pkg/engine. Only the fields relevant to Kind are populated.
type Operation struct {
	Kind       Kind
	Name       string                   // database/collection/backup name, as appropriate
	Collection string
	Field      string                   // index field
	Enable     bool                     // enable_indexing true/false
	Document   map[string]interface{}   // insert
	Documents  []map[string]interface{} // insert_many
	Filter     map[string]interface{}   // update/delete/find query
	Update     map[string]interface{}   // update mutation payload
	Pipeline   []*document.Document     // aggregate, one stage per element, order-preserving
	All        bool                     // update/delete: mutate every match, not just the first (REST-only; the keyword language has no multi-document verb)
}
