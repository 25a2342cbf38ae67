package clause

import (
	"testing"
)

func col(path string) *Column             { return &Column{Path: path} }
func lit(v any) *Literal                  { return &Literal{Value: v} }
func eq(l, r Clause) *Expression          { return &Expression{Op: OpEq, Left: l, Right: r} }
func and(children ...Clause) *And         { return &And{Children: children} }
func or(children ...Clause) *Or           { return &Or{Children: children} }
func not(inner Clause) *Not               { return &Not{Inner: inner} }
func cmpExpr(op Operator, l, r Clause) *Expression { return &Expression{Op: op, Left: l, Right: r} }

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a    Clause
		b    Clause
		want bool
	}{
		{
			name: "identical expressions",
			a:    eq(col("resource.name"), lit("posts")),
			b:    eq(col("resource.name"), lit("posts")),
			want: true,
		},
		{
			name: "different literal",
			a:    eq(col("resource.name"), lit("posts")),
			b:    eq(col("resource.name"), lit("users")),
			want: false,
		},
		{
			name: "numeric literals across types",
			a:    lit(1),
			b:    lit(1.0),
			want: true,
		},
		{
			name: "and children order insensitive",
			a:    and(lit("a"), lit("b")),
			b:    and(lit("b"), lit("a")),
			want: true,
		},
		{
			name: "duplicate children are not collapsed",
			a:    and(lit("a"), lit("a")),
			b:    and(lit("a")),
			want: false,
		},
		{
			name: "duplicates must match one to one",
			a:    and(lit("a"), lit("a"), lit("b")),
			b:    and(lit("a"), lit("b"), lit("b")),
			want: false,
		},
		{
			name: "and is not or",
			a:    and(),
			b:    or(),
			want: false,
		},
		{
			name: "function calls compare structurally",
			a:    &FunctionCall{Schema: "public", Name: "f", Args: []Clause{lit(1)}},
			b:    &FunctionCall{Schema: "public", Name: "f", Args: []Clause{lit(1)}},
			want: true,
		},
		{
			name: "function call argument order matters",
			a:    &FunctionCall{Name: "f", Args: []Clause{lit(1), lit(2)}},
			b:    &FunctionCall{Name: "f", Args: []Clause{lit(2), lit(1)}},
			want: false,
		},
		{
			name: "nested not",
			a:    not(eq(col("x"), lit(true))),
			b:    not(eq(col("x"), lit(true))),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Equality is symmetric.
			if got := Equal(tt.b, tt.a); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestMapRewritesBottomUp(t *testing.T) {
	in := and(
		eq(col("resource.row.owner"), lit("alice")),
		or(col("resource.col"), not(col("resource.col"))),
	)
	got := Map(in, func(c Clause) Clause {
		if c, ok := c.(*Column); ok {
			return &Column{Path: "renamed." + c.Path}
		}
		return c
	})
	want := and(
		eq(col("renamed.resource.row.owner"), lit("alice")),
		or(col("renamed.resource.col"), not(col("renamed.resource.col"))),
	)
	if !Equal(got, want) {
		t.Errorf("Map result = %s, want %s", got, want)
	}
	// The original tree is untouched.
	if !Equal(in.Children[0], eq(col("resource.row.owner"), lit("alice"))) {
		t.Errorf("Map mutated its input: %s", in)
	}
}

func TestMapVisitsFunctionArgs(t *testing.T) {
	in := &FunctionCall{Schema: "auth", Name: "current_tenant", Args: []Clause{col("resource.row.tenant_id")}}
	count := 0
	Map(in, func(c Clause) Clause {
		if _, ok := c.(*Column); ok {
			count++
		}
		return c
	})
	if count != 1 {
		t.Errorf("expected 1 column visit inside function args, got %d", count)
	}
}

func TestCanonicalConstants(t *testing.T) {
	if !IsTrue(True()) || IsTrue(False()) {
		t.Error("IsTrue misclassifies the canonical constants")
	}
	if !IsFalse(False()) || IsFalse(True()) {
		t.Error("IsFalse misclassifies the canonical constants")
	}
	if IsTrue(and(lit(1))) {
		t.Error("non-empty And must not be True")
	}
}

func TestSortKeyStableAcrossChildOrder(t *testing.T) {
	a := and(eq(col("x"), lit(1)), eq(col("y"), lit(2)))
	b := and(eq(col("y"), lit(2)), eq(col("x"), lit(1)))
	if SortKey(a) != SortKey(b) {
		t.Errorf("SortKey differs for equal trees: %q vs %q", SortKey(a), SortKey(b))
	}
}
