// Package resolve turns translated rule clauses into concrete permission
// records by evaluating them against a catalog snapshot. Resolution is
// exhaustive: every branch of the actor, action and resource product is
// evaluated and every validation error is collected before anything is
// reported, so a failing run shows all problems in one pass.
package resolve

import (
	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

// Privilege is a named permission applicable to one object kind.
type Privilege string

// Privileges shared across object kinds.
const (
	PrivSelect     Privilege = "SELECT"
	PrivInsert     Privilege = "INSERT"
	PrivUpdate     Privilege = "UPDATE"
	PrivDelete     Privilege = "DELETE"
	PrivTruncate   Privilege = "TRUNCATE"
	PrivReferences Privilege = "REFERENCES"
	PrivTrigger    Privilege = "TRIGGER"
	PrivUsage      Privilege = "USAGE"
	PrivCreate     Privilege = "CREATE"
	PrivExecute    Privilege = "EXECUTE"
)

// Fixed privilege enumerations per object kind.
var (
	schemaPrivileges   = []Privilege{PrivUsage, PrivCreate}
	tablePrivileges    = []Privilege{PrivSelect, PrivInsert, PrivUpdate, PrivDelete, PrivTruncate, PrivReferences, PrivTrigger}
	viewPrivileges     = []Privilege{PrivSelect, PrivInsert, PrivUpdate, PrivDelete, PrivTrigger}
	routinePrivileges  = []Privilege{PrivExecute}
	sequencePrivileges = []Privilege{PrivUsage, PrivSelect, PrivUpdate}
)

// rowPrivileges are the table privileges subject to row-level security.
var rowPrivileges = map[Privilege]bool{
	PrivSelect: true,
	PrivInsert: true,
	PrivUpdate: true,
	PrivDelete: true,
}

// columnPrivileges are the table privileges that accept a column list.
var columnPrivileges = map[Privilege]bool{
	PrivSelect:     true,
	PrivInsert:     true,
	PrivUpdate:     true,
	PrivReferences: true,
}

// RowPrivilege reports whether p is enforced through row-level security.
func RowPrivilege(p Privilege) bool { return rowPrivileges[p] }

// ColumnPrivilege reports whether p supports per-column grants.
func ColumnPrivilege(p Privilege) bool { return columnPrivileges[p] }

// Permission is one concrete grant: an actor, a privilege and a target
// object. Only table permissions carry row and column clauses; for every
// other kind the grant is unconditional by construction.
type Permission struct {
	Kind      catalog.ObjectKind
	Actor     catalog.Actor
	Privilege Privilege
	Object    catalog.QualifiedName

	// RowClause is a boolean predicate over the table's column names,
	// compiled to a row-security policy. True means no row restriction.
	RowClause clause.Clause
	// ColumnClause is a predicate over the synthetic "col" variable,
	// evaluated once per actual column name. True means all columns.
	ColumnClause clause.Clause
}

// Unconditional reports whether the permission has no row or column
// restriction.
func (p Permission) Unconditional() bool {
	return (p.RowClause == nil || clause.IsTrue(p.RowClause)) &&
		(p.ColumnClause == nil || clause.IsTrue(p.ColumnClause))
}

// Rule is one translated rule solution: three clause trees constraining the
// actor, action and resource variables.
type Rule struct {
	Actor    clause.Clause
	Action   clause.Clause
	Resource clause.Clause
}
