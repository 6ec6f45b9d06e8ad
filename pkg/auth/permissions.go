// Package auth implements the access-control collaborator described in
// SPEC_FULL.md §4.8: a capability/role model the engine consults before
// dispatching each operation, plus user accounts for the server surface.
package auth

// Capability is one of the fixed set of access checks an operation
// requires before dispatch.
type Capability string

const (
	CapCreateDB     Capability = "CREATE_DB"
	CapDropDB       Capability = "DROP_DB"
	CapUseDB        Capability = "USE_DB"
	CapCreateColl   Capability = "CREATE_COLL"
	CapDropColl     Capability = "DROP_COLL"
	CapInsert       Capability = "INSERT"
	CapUpdate       Capability = "UPDATE"
	CapDelete       Capability = "DELETE"
	CapRead         Capability = "READ"
	CapCreateIndex  Capability = "CREATE_INDEX"
	CapListIndexes  Capability = "LIST_INDEXES"
	CapBeginTx      Capability = "BEGIN_TX"
	CapCommit       Capability = "COMMIT"
	CapRollback     Capability = "ROLLBACK"
	CapBackup       Capability = "BACKUP"
	CapRestore      Capability = "RESTORE"
)

// Role names one of the three default roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReadWrite Role = "readWrite"
	RoleRead      Role = "read"
)

// rolePermissions maps each default role to its granted capabilities,
// grounded on the three-role table in the Python original's permission
// manager (admin/read_write/read).
var rolePermissions = map[Role]map[Capability]bool{
	RoleAdmin: allCapabilities(),
	RoleReadWrite: capSet(
		CapUseDB, CapCreateColl, CapDropColl,
		CapInsert, CapUpdate, CapDelete, CapRead,
		CapCreateIndex, CapListIndexes,
		CapBeginTx, CapCommit, CapRollback,
	),
	RoleRead: capSet(CapUseDB, CapRead, CapListIndexes),
}

func allCapabilities() map[Capability]bool {
	return capSet(
		CapCreateDB, CapDropDB, CapUseDB, CapCreateColl, CapDropColl,
		CapInsert, CapUpdate, CapDelete, CapRead,
		CapCreateIndex, CapListIndexes,
		CapBeginTx, CapCommit, CapRollback,
		CapBackup, CapRestore,
	)
}

func capSet(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// HasCapability reports whether role grants capability.
func HasCapability(role Role, capability Capability) bool {
	return rolePermissions[role][capability]
}

// RequiredCapability maps an operation kind string (query.Kind) to the
// capability the engine must check before dispatch.
func RequiredCapability(operationKind string) (Capability, bool) {
	cap, ok := operationCapabilities[operationKind]
	return cap, ok
}

var operationCapabilities = map[string]Capability{
	"create_db":         CapCreateDB,
	"drop_db":           CapDropDB,
	"use_db":            CapUseDB,
	"create_collection": CapCreateColl,
	"drop_collection":   CapDropColl,
	"insert":            CapInsert,
	"insert_many":       CapInsert,
	"update":            CapUpdate,
	"delete":            CapDelete,
	"find":              CapRead,
	"aggregate":         CapRead,
	"create_index":      CapCreateIndex,
	"list_indexes":      CapListIndexes,
	"enable_indexing":   CapCreateIndex,
	"begin_transaction": CapBeginTx,
	"commit":            CapCommit,
	"rollback":          CapRollback,
	"backup":            CapBackup,
	"restore":           CapRestore,
}
