package resolve

import (
	"testing"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

func tablePerm(actor, priv, schema, name string, row, column clause.Clause) Permission {
	return Permission{
		Kind:         catalog.KindTable,
		Actor:        catalog.Actor{Name: actor},
		Privilege:    Privilege(priv),
		Object:       catalog.QualifiedName{Schema: schema, Name: name},
		RowClause:    row,
		ColumnClause: column,
	}
}

func TestMergePermissionsUnionsTableClauses(t *testing.T) {
	rowA := eq(col("author"), lit("alice"))
	rowB := eq(col("author"), lit("bob"))

	perms := []Permission{
		tablePerm("alice", "SELECT", "public", "posts", rowA, clause.True()),
		tablePerm("alice", "SELECT", "public", "posts", rowB, clause.True()),
	}

	merged := MergePermissions(perms)
	if len(merged) != 1 {
		t.Fatalf("merged to %d permissions, want 1", len(merged))
	}
	want := or(rowA, rowB)
	if !clause.Equal(merged[0].RowClause, want) {
		t.Errorf("row clause = %s, want %s", merged[0].RowClause, want)
	}
	// A True column clause makes the union unconditional on columns.
	if !clause.IsTrue(merged[0].ColumnClause) {
		t.Errorf("column clause = %s, want true", merged[0].ColumnClause)
	}
}

func TestMergePermissionsTrueClauseAbsorbs(t *testing.T) {
	rowA := eq(col("author"), lit("alice"))
	perms := []Permission{
		tablePerm("alice", "SELECT", "public", "posts", rowA, clause.True()),
		tablePerm("alice", "SELECT", "public", "posts", clause.True(), clause.True()),
	}

	merged := MergePermissions(perms)
	if len(merged) != 1 {
		t.Fatalf("merged to %d permissions, want 1", len(merged))
	}
	if !clause.IsTrue(merged[0].RowClause) {
		t.Errorf("row clause = %s, want true after union with unconditional grant", merged[0].RowClause)
	}
}

// Merging never drops an actor, privilege or object combination.
func TestMergePermissionsMonotonic(t *testing.T) {
	perms := []Permission{
		tablePerm("alice", "SELECT", "public", "posts", clause.True(), clause.True()),
		tablePerm("bob", "SELECT", "public", "posts", clause.True(), clause.True()),
		tablePerm("alice", "INSERT", "public", "posts", clause.True(), clause.True()),
		tablePerm("alice", "SELECT", "public", "users", clause.True(), clause.True()),
		{
			Kind:      catalog.KindSchema,
			Actor:     catalog.Actor{Name: "alice"},
			Privilege: "USAGE",
			Object:    catalog.QualifiedName{Name: "public"},
		},
	}

	merged := MergePermissions(perms)
	if len(merged) != len(perms) {
		t.Fatalf("merged %d distinct permissions to %d", len(perms), len(merged))
	}
	for _, key := range permKeys(perms) {
		if !containsKey(merged, key) {
			t.Errorf("merge dropped %s", key)
		}
	}
}

func TestMergePermissionsKeepsFirstForNonTableKinds(t *testing.T) {
	perms := []Permission{
		{
			Kind:      catalog.KindSchema,
			Actor:     catalog.Actor{Name: "alice"},
			Privilege: "USAGE",
			Object:    catalog.QualifiedName{Name: "public"},
		},
		{
			Kind:      catalog.KindSchema,
			Actor:     catalog.Actor{Name: "alice"},
			Privilege: "USAGE",
			Object:    catalog.QualifiedName{Name: "public"},
		},
	}
	merged := MergePermissions(perms)
	if len(merged) != 1 {
		t.Fatalf("merged to %d permissions, want 1", len(merged))
	}
}
