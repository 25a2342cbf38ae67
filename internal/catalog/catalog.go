// Package catalog models the read-only snapshot of database entities that
// permissions are resolved against. One snapshot is taken per compile and is
// never mutated; the compiler only emits SQL text, it never writes back.
package catalog

import (
	"fmt"
	"sort"
)

// ObjectKind tags the object kinds the compiler can grant privileges on.
type ObjectKind string

const (
	KindSchema    ObjectKind = "schema"
	KindTable     ObjectKind = "table"
	KindView      ObjectKind = "view"
	KindFunction  ObjectKind = "function"
	KindProcedure ObjectKind = "procedure"
	KindSequence  ObjectKind = "sequence"
)

// Kinds lists all grantable object kinds in a stable order.
func Kinds() []ObjectKind {
	return []ObjectKind{KindSchema, KindTable, KindView, KindFunction, KindProcedure, KindSequence}
}

// QualifiedName is the (schema, name) pair identifying every non-actor
// catalog object.
type QualifiedName struct {
	Schema string
	Name   string
}

func (q QualifiedName) String() string {
	if q.Schema == "" {
		return q.Name
	}
	return q.Schema + "." + q.Name
}

// Actor is a database role that can be granted privileges: a user or a group.
type Actor struct {
	Name    string
	IsGroup bool
}

// Schema is a database namespace.
type Schema struct {
	Name  string
	Owner string
}

// Table carries the column list and row-security state needed for column-
// and row-level grants.
type Table struct {
	Schema     string
	Name       string
	Columns    []string
	RLSEnabled bool
}

// QualifiedName returns the table's schema-qualified identity.
func (t *Table) QualifiedName() QualifiedName {
	return QualifiedName{Schema: t.Schema, Name: t.Name}
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// View is a database view.
type View struct {
	Schema string
	Name   string
}

// Routine is a function or procedure. Builtins (extension- or catalog-owned)
// are excluded from permission targeting.
type Routine struct {
	Schema  string
	Name    string
	Builtin bool
}

// Sequence is a database sequence.
type Sequence struct {
	Schema string
	Name   string
}

// Policy is an existing row-security policy, captured so that stale
// restrictive policies can be dropped on re-runs.
type Policy struct {
	Schema     string
	Table      string
	Name       string
	Permissive bool
	Roles      []string
}

// Catalog is the full entity snapshot supplied by the backend.
type Catalog struct {
	Users      []Actor
	Groups     []Actor
	Schemas    []Schema
	Tables     []*Table
	Views      []View
	Functions  []Routine
	Procedures []Routine
	Sequences  []Sequence
	Policies   []Policy
}

// Actors returns users and groups as one list, users first, each list in
// its original order.
func (c *Catalog) Actors() []Actor {
	out := make([]Actor, 0, len(c.Users)+len(c.Groups))
	out = append(out, c.Users...)
	out = append(out, c.Groups...)
	return out
}

// LookupActor resolves an actor by name.
func (c *Catalog) LookupActor(name string) (Actor, bool) {
	for _, a := range c.Actors() {
		if a.Name == name {
			return a, true
		}
	}
	return Actor{}, false
}

// LookupTable resolves a table by qualified name.
func (c *Catalog) LookupTable(qn QualifiedName) (*Table, bool) {
	for _, t := range c.Tables {
		if t.Schema == qn.Schema && t.Name == qn.Name {
			return t, true
		}
	}
	return nil, false
}

// SchemaNames returns the sorted names of all non-system schemas in the
// snapshot.
func (c *Catalog) SchemaNames() []string {
	names := make([]string, len(c.Schemas))
	for i, s := range c.Schemas {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}

// Validate performs basic internal consistency checks on a snapshot.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, a := range c.Actors() {
		if seen[a.Name] {
			return fmt.Errorf("duplicate actor %q in catalog", a.Name)
		}
		seen[a.Name] = true
	}
	schemas := map[string]bool{}
	for _, s := range c.Schemas {
		schemas[s.Name] = true
	}
	for _, t := range c.Tables {
		if !schemas[t.Schema] {
			return fmt.Errorf("table %s references unknown schema %q", t.QualifiedName(), t.Schema)
		}
	}
	return nil
}
