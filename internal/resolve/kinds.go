package resolve

import (
	"fmt"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

// Match is one catalog object satisfying a resource conjunction. For table
// matches the row and column clauses are already rewritten to bare column
// names and the synthetic "col" variable.
type Match struct {
	Object       catalog.QualifiedName
	RowClause    clause.Clause
	ColumnClause clause.Clause
}

// Handler is the per-kind evaluation strategy: its privilege set and the
// test of a resource conjunction against every catalog object of the kind.
type Handler interface {
	Kind() catalog.ObjectKind
	Privileges() []Privilege
	// EvaluateObjects tests an Or-free resource conjunction against every
	// object of this kind, returning matches plus validation errors.
	EvaluateObjects(cat *catalog.Catalog, conj clause.Clause) ([]Match, []string)
}

// Handlers returns the evaluation strategies for all object kinds in a
// stable order.
func Handlers() []Handler {
	return []Handler{
		&metadataHandler{kind: catalog.KindSchema, privileges: schemaPrivileges, objects: schemaObjects},
		&tableHandler{},
		&metadataHandler{kind: catalog.KindView, privileges: viewPrivileges, objects: viewObjects},
		&metadataHandler{kind: catalog.KindFunction, privileges: routinePrivileges, objects: functionObjects},
		&metadataHandler{kind: catalog.KindProcedure, privileges: routinePrivileges, objects: procedureObjects},
		&metadataHandler{kind: catalog.KindSequence, privileges: sequencePrivileges, objects: sequenceObjects},
	}
}

// objectSemantics exposes the metadata fields of one catalog object:
// the bare variable is the schema-qualified display name, and the name,
// schema and type components are addressable individually.
func objectSemantics(kind catalog.ObjectKind, qn catalog.QualifiedName) clause.Semantics {
	return clause.Semantics{
		Subject: "resource",
		GetValue: func(c clause.Clause) (any, error) {
			switch c := c.(type) {
			case *clause.Literal:
				return c.Value, nil
			case *clause.Column:
				fp := clause.ParseFieldPath(c.Path)
				switch fp.Kind {
				case clause.FieldIdentity:
					return qn.String(), nil
				case clause.FieldName:
					return qn.Name, nil
				case clause.FieldSchema:
					// A schema's own schema field is its name, so
					// generic schema filters match schemas too.
					if qn.Schema == "" {
						return qn.Name, nil
					}
					return qn.Schema, nil
				case clause.FieldType:
					return string(kind), nil
				}
				return nil, clause.Validationf("invalid field reference: %q", c.Path)
			default:
				return nil, clause.Validationf("unsupported term in resource clause: %s", c)
			}
		},
	}
}

// metadataHandler evaluates kinds whose grants are unconditional: the
// resource conjunction can only reference object metadata.
type metadataHandler struct {
	kind       catalog.ObjectKind
	privileges []Privilege
	objects    func(cat *catalog.Catalog) []catalog.QualifiedName
}

func (h *metadataHandler) Kind() catalog.ObjectKind { return h.kind }
func (h *metadataHandler) Privileges() []Privilege  { return h.privileges }

func (h *metadataHandler) EvaluateObjects(cat *catalog.Catalog, conj clause.Clause) ([]Match, []string) {
	var matches []Match
	var errs []string
	for _, qn := range h.objects(cat) {
		res := clause.Evaluate(conj, objectSemantics(h.kind, qn), false)
		errs = append(errs, res.Errors...)
		if res.Match {
			matches = append(matches, Match{Object: qn, RowClause: clause.True(), ColumnClause: clause.True()})
		}
	}
	return matches, errs
}

func schemaObjects(cat *catalog.Catalog) []catalog.QualifiedName {
	out := make([]catalog.QualifiedName, len(cat.Schemas))
	for i, s := range cat.Schemas {
		out[i] = catalog.QualifiedName{Name: s.Name}
	}
	return out
}

func viewObjects(cat *catalog.Catalog) []catalog.QualifiedName {
	out := make([]catalog.QualifiedName, len(cat.Views))
	for i, v := range cat.Views {
		out[i] = catalog.QualifiedName{Schema: v.Schema, Name: v.Name}
	}
	return out
}

func functionObjects(cat *catalog.Catalog) []catalog.QualifiedName {
	return routineObjects(cat.Functions)
}

func procedureObjects(cat *catalog.Catalog) []catalog.QualifiedName {
	return routineObjects(cat.Procedures)
}

func routineObjects(routines []catalog.Routine) []catalog.QualifiedName {
	var out []catalog.QualifiedName
	for _, r := range routines {
		if r.Builtin {
			continue
		}
		out = append(out, catalog.QualifiedName{Schema: r.Schema, Name: r.Name})
	}
	return out
}

func sequenceObjects(cat *catalog.Catalog) []catalog.QualifiedName {
	out := make([]catalog.QualifiedName, len(cat.Sequences))
	for i, s := range cat.Sequences {
		out[i] = catalog.QualifiedName{Schema: s.Schema, Name: s.Name}
	}
	return out
}

// tableHandler evaluates table conjunctions, which may additionally carry
// column-filter and row predicates alongside object metadata.
type tableHandler struct{}

func (h *tableHandler) Kind() catalog.ObjectKind { return catalog.KindTable }
func (h *tableHandler) Privileges() []Privilege  { return tablePrivileges }

// bucket classifies one conjunction literal by the shape of its leaf
// references.
type bucket int

const (
	bucketMetadata bucket = iota
	bucketColumn
	bucketRow
)

func (h *tableHandler) EvaluateObjects(cat *catalog.Catalog, conj clause.Clause) ([]Match, []string) {
	metadata, columns, rows := partitionTableClause(conj)

	var matches []Match
	var errs []string
	for _, table := range cat.Tables {
		qn := table.QualifiedName()
		res := clause.Evaluate(metadata, objectSemantics(catalog.KindTable, qn), false)
		errs = append(errs, res.Errors...)
		if !res.Match {
			// Not this table; errors on other buckets are irrelevant.
			continue
		}

		columnClause := rewriteColumnRefs(columns)
		errs = append(errs, validateColumnClause(columnClause, table)...)

		rowClause := rewriteRowRefs(rows)
		errs = append(errs, validateRowClause(rowClause, table)...)

		matches = append(matches, Match{
			Object:       qn,
			RowClause:    clause.Optimize(rowClause),
			ColumnClause: clause.Optimize(columnClause),
		})
	}
	return matches, errs
}

// partitionTableClause splits a conjunction's literals into metadata, column
// and row buckets. A literal mixing column- and row-shaped references falls
// through to the metadata bucket, where its shaped references fail metadata
// validation with a clear error; mixed clauses are rejected, not supported.
func partitionTableClause(conj clause.Clause) (metadata, columns, rows clause.Clause) {
	var parts []clause.Clause
	if a, ok := conj.(*clause.And); ok {
		parts = a.Children
	} else {
		parts = []clause.Clause{conj}
	}

	group := map[bucket][]clause.Clause{}
	for _, part := range parts {
		b := classifyLiteral(part)
		group[b] = append(group[b], part)
	}
	return &clause.And{Children: group[bucketMetadata]},
		&clause.And{Children: group[bucketColumn]},
		&clause.And{Children: group[bucketRow]}
}

func classifyLiteral(c clause.Clause) bucket {
	colRefs, rowRefs := 0, 0
	clause.Walk(c, func(node clause.Clause) {
		col, ok := node.(*clause.Column)
		if !ok {
			return
		}
		switch clause.ParseFieldPath(col.Path).Kind {
		case clause.FieldCol:
			colRefs++
		case clause.FieldRow:
			rowRefs++
		}
	})
	switch {
	case colRefs > 0 && rowRefs > 0:
		return bucketMetadata
	case colRefs > 0:
		return bucketColumn
	case rowRefs > 0:
		return bucketRow
	default:
		return bucketMetadata
	}
}

// rewriteColumnRefs replaces qualified column-filter references with the
// bare "col" variable.
func rewriteColumnRefs(c clause.Clause) clause.Clause {
	return clause.Map(c, func(node clause.Clause) clause.Clause {
		if col, ok := node.(*clause.Column); ok {
			if clause.ParseFieldPath(col.Path).Kind == clause.FieldCol {
				return &clause.Column{Path: "col"}
			}
		}
		return node
	})
}

// rewriteRowRefs replaces qualified row references with bare column names.
func rewriteRowRefs(c clause.Clause) clause.Clause {
	return clause.Map(c, func(node clause.Clause) clause.Clause {
		if col, ok := node.(*clause.Column); ok {
			if fp := clause.ParseFieldPath(col.Path); fp.Kind == clause.FieldRow {
				return &clause.Column{Path: fp.Column}
			}
		}
		return node
	})
}

func validateColumnClause(c clause.Clause, table *catalog.Table) []string {
	var errs []string
	clause.Walk(c, func(node clause.Clause) {
		switch node := node.(type) {
		case *clause.Column:
			if node.Path != "col" {
				errs = append(errs, fmt.Sprintf("invalid reference %q in column filter for table %s", node.Path, table.QualifiedName()))
			}
		case *clause.Expression:
			lit := literalOperandAgainstCol(node)
			if lit == nil {
				return
			}
			name, ok := lit.Value.(string)
			if !ok {
				errs = append(errs, fmt.Sprintf("column filter for table %s must compare against a string, got %s", table.QualifiedName(), lit))
				return
			}
			if !table.HasColumn(name) {
				errs = append(errs, fmt.Sprintf("invalid column %q for table %s", name, table.QualifiedName()))
			}
		case *clause.FunctionCall:
			errs = append(errs, fmt.Sprintf("unsupported function call in column filter for table %s: %s", table.QualifiedName(), node))
		}
	})
	return errs
}

// literalOperandAgainstCol returns the literal side of an expression whose
// other side is the bare "col" variable, or nil.
func literalOperandAgainstCol(expr *clause.Expression) *clause.Literal {
	if col, ok := expr.Left.(*clause.Column); ok && col.Path == "col" {
		if lit, ok := expr.Right.(*clause.Literal); ok {
			return lit
		}
	}
	if col, ok := expr.Right.(*clause.Column); ok && col.Path == "col" {
		if lit, ok := expr.Left.(*clause.Literal); ok {
			return lit
		}
	}
	return nil
}

func validateRowClause(c clause.Clause, table *catalog.Table) []string {
	var errs []string
	clause.Walk(c, func(node clause.Clause) {
		if col, ok := node.(*clause.Column); ok {
			if !table.HasColumn(col.Path) {
				errs = append(errs, fmt.Sprintf("invalid column %q for table %s", col.Path, table.QualifiedName()))
			}
		}
	})
	return errs
}
