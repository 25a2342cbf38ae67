package sqlgen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Users: []catalog.Actor{
			{Name: "alice"},
			{Name: "bob"},
		},
		Groups: []catalog.Actor{
			{Name: "analysts", IsGroup: true},
		},
		Schemas: []catalog.Schema{
			{Name: "public"},
			{Name: "reporting"},
		},
		Tables: []*catalog.Table{
			{
				Schema:  "public",
				Name:    "posts",
				Columns: []string{"id", "title", "author", "content"},
			},
			{
				Schema:     "reporting",
				Name:       "stats",
				Columns:    []string{"id", "metric", "value"},
				RLSEnabled: true,
			},
		},
		Sequences: []catalog.Sequence{
			{Schema: "public", Name: "posts_id_seq"},
		},
		Policies: []catalog.Policy{
			{
				Schema:     "public",
				Table:      "posts",
				Name:       "sqlauthz_select_public_posts_bob",
				Permissive: false,
				Roles:      []string{"bob"},
			},
			{
				Schema:     "public",
				Table:      "posts",
				Name:       "hand_written_restrictive",
				Permissive: false,
				Roles:      []string{"bob"},
			},
			{
				Schema:     "public",
				Table:      "posts",
				Name:       "hand_written_permissive",
				Permissive: true,
				Roles:      []string{"bob"},
			},
			{
				Schema:     "reporting",
				Table:      "stats",
				Name:       "carol_only_policy",
				Permissive: false,
				Roles:      []string{"carol"},
			},
		},
	}
}

func tablePerm(actor, privilege string, object catalog.QualifiedName) resolve.Permission {
	return resolve.Permission{
		Kind:      catalog.KindTable,
		Actor:     catalog.Actor{Name: actor},
		Privilege: resolve.Privilege(privilege),
		Object:    object,
	}
}

func TestRenderRowSecurityBootstrap(t *testing.T) {
	cat := testCatalog()
	state := newRLSState()

	perm := tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "public", Name: "posts"})
	perm.RowClause = eq(col("author"), lit("Author A"))

	got, err := state.RenderRowSecurity(perm, cat)
	if err != nil {
		t.Fatalf("RenderRowSecurity() error: %v", err)
	}

	want := []string{
		`ALTER TABLE "public"."posts" ENABLE ROW LEVEL SECURITY;`,
		`CREATE POLICY "sqlauthz_default_public_posts" ON "public"."posts" AS PERMISSIVE FOR ALL TO PUBLIC USING (true);`,
		`CREATE POLICY "sqlauthz_select_public_posts_alice" ON "public"."posts" AS RESTRICTIVE FOR SELECT TO "alice" USING (("author" = 'Author A'));`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}

	// Same table, second permission: the bootstrap must not repeat.
	second := tablePerm("bob", "DELETE", catalog.QualifiedName{Schema: "public", Name: "posts"})
	second.RowClause = eq(col("author"), lit("bob"))

	got, err = state.RenderRowSecurity(second, cat)
	if err != nil {
		t.Fatalf("RenderRowSecurity() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the policy statement, got %d statements:\n%s", len(got), strings.Join(got, "\n"))
	}
}

func TestRenderRowSecurityEnabledTable(t *testing.T) {
	cat := testCatalog()
	state := newRLSState()

	perm := tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "reporting", Name: "stats"})
	perm.RowClause = eq(col("metric"), lit("views"))

	got, err := state.RenderRowSecurity(perm, cat)
	if err != nil {
		t.Fatalf("RenderRowSecurity() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected no bootstrap for a table with RLS enabled, got:\n%s", strings.Join(got, "\n"))
	}
	if !strings.Contains(got[0], "AS RESTRICTIVE FOR SELECT") {
		t.Errorf("unexpected statement: %s", got[0])
	}
}

func TestRenderRowSecurityPerPrivilegeForm(t *testing.T) {
	cat := testCatalog()
	object := catalog.QualifiedName{Schema: "reporting", Name: "stats"}

	tests := []struct {
		privilege string
		want      string
	}{
		{privilege: "SELECT", want: `FOR SELECT TO "alice" USING (("metric" = 'views'));`},
		{privilege: "INSERT", want: `FOR INSERT TO "alice" WITH CHECK (("metric" = 'views'));`},
		{privilege: "UPDATE", want: `FOR UPDATE TO "alice" USING (("metric" = 'views')) WITH CHECK (("metric" = 'views'));`},
		{privilege: "DELETE", want: `FOR DELETE TO "alice" USING (("metric" = 'views'));`},
	}

	for _, tt := range tests {
		t.Run(tt.privilege, func(t *testing.T) {
			perm := tablePerm("alice", tt.privilege, object)
			perm.RowClause = eq(col("metric"), lit("views"))

			got, err := newRLSState().RenderRowSecurity(perm, cat)
			if err != nil {
				t.Fatalf("RenderRowSecurity() error: %v", err)
			}
			if len(got) != 1 || !strings.HasSuffix(got[0], tt.want) {
				t.Errorf("RenderRowSecurity() = %v, want suffix %s", got, tt.want)
			}
		})
	}
}

func TestRenderRowSecurityTrivialClause(t *testing.T) {
	perm := tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "public", Name: "posts"})

	got, err := newRLSState().RenderRowSecurity(perm, testCatalog())
	if err != nil {
		t.Fatalf("RenderRowSecurity() error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no statements for a permission without row clause, got %v", got)
	}
}

func TestRenderRowSecurityUnsupportedPrivilege(t *testing.T) {
	perm := tablePerm("alice", "TRUNCATE", catalog.QualifiedName{Schema: "public", Name: "posts"})
	perm.RowClause = eq(col("author"), lit("x"))

	_, err := newRLSState().RenderRowSecurity(perm, testCatalog())
	if err == nil || !strings.Contains(err.Error(), "does not support a row clause") {
		t.Errorf("expected row clause privilege error, got %v", err)
	}
}
