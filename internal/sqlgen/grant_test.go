package sqlgen

import (
	"strings"
	"testing"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

func TestRenderGrant(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name string
		perm resolve.Permission
		want string
	}{
		{
			name: "schema usage",
			perm: resolve.Permission{
				Kind:      catalog.KindSchema,
				Actor:     catalog.Actor{Name: "alice"},
				Privilege: resolve.PrivUsage,
				Object:    catalog.QualifiedName{Name: "reporting"},
			},
			want: `GRANT USAGE ON SCHEMA "reporting" TO "alice";`,
		},
		{
			name: "table select",
			perm: tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "public", Name: "posts"}),
			want: `GRANT SELECT ON TABLE "public"."posts" TO "alice";`,
		},
		{
			name: "view uses table form",
			perm: resolve.Permission{
				Kind:      catalog.KindView,
				Actor:     catalog.Actor{Name: "analysts", IsGroup: true},
				Privilege: resolve.PrivSelect,
				Object:    catalog.QualifiedName{Schema: "public", Name: "post_titles"},
			},
			want: `GRANT SELECT ON TABLE "public"."post_titles" TO "analysts";`,
		},
		{
			name: "function execute",
			perm: resolve.Permission{
				Kind:      catalog.KindFunction,
				Actor:     catalog.Actor{Name: "bob"},
				Privilege: resolve.PrivExecute,
				Object:    catalog.QualifiedName{Schema: "public", Name: "slugify"},
			},
			want: `GRANT EXECUTE ON FUNCTION "public"."slugify" TO "bob";`,
		},
		{
			name: "procedure execute",
			perm: resolve.Permission{
				Kind:      catalog.KindProcedure,
				Actor:     catalog.Actor{Name: "bob"},
				Privilege: resolve.PrivExecute,
				Object:    catalog.QualifiedName{Schema: "reporting", Name: "refresh_stats"},
			},
			want: `GRANT EXECUTE ON PROCEDURE "reporting"."refresh_stats" TO "bob";`,
		},
		{
			name: "sequence update",
			perm: resolve.Permission{
				Kind:      catalog.KindSequence,
				Actor:     catalog.Actor{Name: "alice"},
				Privilege: resolve.PrivUpdate,
				Object:    catalog.QualifiedName{Schema: "public", Name: "posts_id_seq"},
			},
			want: `GRANT UPDATE ON SEQUENCE "public"."posts_id_seq" TO "alice";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderGrant(tt.perm, cat)
			if err != nil {
				t.Fatalf("RenderGrant() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderGrant() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRenderGrantColumnSubset(t *testing.T) {
	cat := testCatalog()

	perm := tablePerm("alice", "UPDATE", catalog.QualifiedName{Schema: "public", Name: "posts"})
	perm.ColumnClause = not(eq(col("col"), lit("id")))

	got, err := RenderGrant(perm, cat)
	if err != nil {
		t.Fatalf("RenderGrant() error: %v", err)
	}
	want := `GRANT UPDATE ("title", "author", "content") ON TABLE "public"."posts" TO "alice";`
	if got != want {
		t.Errorf("RenderGrant() = %s, want %s", got, want)
	}
}

func TestRenderGrantEmptyColumnSubset(t *testing.T) {
	cat := testCatalog()

	clauses := map[string]clause.Clause{
		"unknown column": eq(col("col"), lit("dropped_column")),
		"contradictory filter": and(
			eq(col("col"), lit("id")),
			eq(col("col"), lit("title")),
		),
	}
	for name, cc := range clauses {
		t.Run(name, func(t *testing.T) {
			perm := tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "public", Name: "posts"})
			perm.ColumnClause = cc

			got, err := RenderGrant(perm, cat)
			if err != nil {
				t.Fatalf("RenderGrant() error: %v", err)
			}
			if got != "" {
				t.Errorf("expected no statement for an empty column subset, got %s", got)
			}
		})
	}
}

func TestRenderGrantMissingTable(t *testing.T) {
	cat := testCatalog()

	perm := tablePerm("alice", "SELECT", catalog.QualifiedName{Schema: "public", Name: "gone"})
	perm.ColumnClause = eq(col("col"), lit("id"))

	_, err := RenderGrant(perm, cat)
	if err == nil || !strings.Contains(err.Error(), "not found in catalog snapshot") {
		t.Errorf("expected catalog snapshot error, got %v", err)
	}
}
