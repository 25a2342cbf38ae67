// Package clause implements the boolean-expression intermediate representation
// that rule bindings are compiled into before being evaluated against the
// database catalog and rendered to SQL. Clause trees are immutable: every
// transformation returns a new tree and never mutates its input.
package clause

import (
	"fmt"
	"sort"
	"strings"
)

// Clause is the closed set of boolean-expression nodes. The rule-engine
// adapter narrows engine values into this union at the boundary; everything
// downstream switches exhaustively over these seven variants.
type Clause interface {
	isClause()
	// String renders a debug representation used in error messages and
	// deduplication keys. It is stable for structurally equal trees.
	String() string
}

// Literal is an opaque scalar value: string, number, boolean or nil.
type Literal struct {
	Value any
}

// Column references a logical variable or dotted field path,
// e.g. "resource.name" or "_this.row.owner".
type Column struct {
	Path string
}

// FunctionCall invokes a named SQL-callable function with clause arguments.
type FunctionCall struct {
	Schema string
	Name   string
	Args   []Clause
}

// Operator is a binary comparison operator.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpLe Operator = "<="
	OpGt Operator = ">"
	OpGe Operator = ">="
)

// Expression is a binary comparison between two sub-clauses.
type Expression struct {
	Op    Operator
	Left  Clause
	Right Clause
}

// Not negates its inner clause.
type Not struct {
	Inner Clause
}

// And is a conjunction. And with no children is the canonical True.
type And struct {
	Children []Clause
}

// Or is a disjunction. Or with no children is the canonical False.
type Or struct {
	Children []Clause
}

func (*Literal) isClause()      {}
func (*Column) isClause()       {}
func (*FunctionCall) isClause() {}
func (*Expression) isClause()   {}
func (*Not) isClause()          {}
func (*And) isClause()          {}
func (*Or) isClause()           {}

// True returns the canonical true clause, an empty conjunction.
func True() *And { return &And{} }

// False returns the canonical false clause, an empty disjunction.
func False() *Or { return &Or{} }

// IsTrue reports whether c is the canonical true clause.
func IsTrue(c Clause) bool {
	a, ok := c.(*And)
	return ok && len(a.Children) == 0
}

// IsFalse reports whether c is the canonical false clause.
func IsFalse(c Clause) bool {
	o, ok := c.(*Or)
	return ok && len(o.Children) == 0
}

func (c *Literal) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", c.Value)
}

func (c *Column) String() string { return c.Path }

func (c *FunctionCall) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	name := c.Name
	if c.Schema != "" {
		name = c.Schema + "." + c.Name
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

func (c *Expression) String() string {
	return fmt.Sprintf("%s %s %s", c.Left.String(), c.Op, c.Right.String())
}

func (c *Not) String() string { return fmt.Sprintf("not (%s)", c.Inner.String()) }

func (c *And) String() string {
	if len(c.Children) == 0 {
		return "true"
	}
	return joinChildren(c.Children, " and ")
}

func (c *Or) String() string {
	if len(c.Children) == 0 {
		return "false"
	}
	return joinChildren(c.Children, " or ")
}

func joinChildren(children []Clause, sep string) string {
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = "(" + child.String() + ")"
	}
	return strings.Join(parts, sep)
}

// Map applies fn bottom-up: children are rewritten first, then fn is applied
// to the rebuilt node. fn may return its argument unchanged; the input tree
// is never mutated.
func Map(c Clause, fn func(Clause) Clause) Clause {
	switch c := c.(type) {
	case *Literal, *Column:
		return fn(c)
	case *FunctionCall:
		args := make([]Clause, len(c.Args))
		for i, a := range c.Args {
			args[i] = Map(a, fn)
		}
		return fn(&FunctionCall{Schema: c.Schema, Name: c.Name, Args: args})
	case *Expression:
		return fn(&Expression{Op: c.Op, Left: Map(c.Left, fn), Right: Map(c.Right, fn)})
	case *Not:
		return fn(&Not{Inner: Map(c.Inner, fn)})
	case *And:
		return fn(&And{Children: mapChildren(c.Children, fn)})
	case *Or:
		return fn(&Or{Children: mapChildren(c.Children, fn)})
	default:
		return fn(c)
	}
}

func mapChildren(children []Clause, fn func(Clause) Clause) []Clause {
	out := make([]Clause, len(children))
	for i, child := range children {
		out[i] = Map(child, fn)
	}
	return out
}

// Walk visits every node of c top-down. It is the read-only counterpart of
// Map, used for structural inspection such as reference counting.
func Walk(c Clause, visit func(Clause)) {
	visit(c)
	switch c := c.(type) {
	case *FunctionCall:
		for _, a := range c.Args {
			Walk(a, visit)
		}
	case *Expression:
		Walk(c.Left, visit)
		Walk(c.Right, visit)
	case *Not:
		Walk(c.Inner, visit)
	case *And:
		for _, child := range c.Children {
			Walk(child, visit)
		}
	case *Or:
		for _, child := range c.Children {
			Walk(child, visit)
		}
	}
}

// Equal reports structural equality. And/Or children are compared as
// multisets (order-insensitive) but never deduplicated: And(a, a) is not
// equal to And(a).
func Equal(a, b Clause) bool {
	switch a := a.(type) {
	case *Literal:
		b, ok := b.(*Literal)
		return ok && literalEqual(a.Value, b.Value)
	case *Column:
		b, ok := b.(*Column)
		return ok && a.Path == b.Path
	case *FunctionCall:
		b, ok := b.(*FunctionCall)
		if !ok || a.Schema != b.Schema || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *Expression:
		b, ok := b.(*Expression)
		return ok && a.Op == b.Op && Equal(a.Left, b.Left) && Equal(a.Right, b.Right)
	case *Not:
		b, ok := b.(*Not)
		return ok && Equal(a.Inner, b.Inner)
	case *And:
		b, ok := b.(*And)
		return ok && childrenEqual(a.Children, b.Children)
	case *Or:
		b, ok := b.(*Or)
		return ok && childrenEqual(a.Children, b.Children)
	}
	return false
}

// childrenEqual matches every child of a against a distinct child of b.
func childrenEqual(a, b []Clause) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, ca := range a {
		for i, cb := range b {
			if !used[i] && Equal(ca, cb) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// literalEqual compares scalar values, treating all numeric types uniformly.
func literalEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

// SortKey returns a canonical ordering key for deterministic output. Trees
// that are Equal produce the same key because And/Or children are sorted.
func SortKey(c Clause) string {
	switch c := c.(type) {
	case *And:
		return sortedKey(c.Children, " and ", "true")
	case *Or:
		return sortedKey(c.Children, " or ", "false")
	case *Not:
		return "not (" + SortKey(c.Inner) + ")"
	case *Expression:
		return SortKey(c.Left) + " " + string(c.Op) + " " + SortKey(c.Right)
	case *FunctionCall:
		args := make([]string, len(c.Args))
		for i, a := range c.Args {
			args[i] = SortKey(a)
		}
		name := c.Name
		if c.Schema != "" {
			name = c.Schema + "." + c.Name
		}
		return name + "(" + strings.Join(args, ", ") + ")"
	default:
		return c.String()
	}
}

func sortedKey(children []Clause, sep, empty string) string {
	if len(children) == 0 {
		return empty
	}
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = "(" + SortKey(child) + ")"
	}
	sort.Strings(parts)
	return strings.Join(parts, sep)
}
