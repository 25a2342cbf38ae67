package clause

import "strings"

// FieldKind classifies what part of a catalog object a dotted field path
// refers to. Paths are parsed once, when a binding is translated, and the
// typed result is what classification and rewriting consume.
type FieldKind int

const (
	// FieldIdentity is the bare variable: the schema-qualified display name.
	FieldIdentity FieldKind = iota
	// FieldName is the object's unqualified name.
	FieldName
	// FieldSchema is the object's schema.
	FieldSchema
	// FieldType is the object kind tag.
	FieldType
	// FieldCol is the synthetic column-filter variable of a table clause.
	FieldCol
	// FieldRow references one column of a table row.
	FieldRow
	// FieldUnknown is any path this compiler does not understand.
	FieldUnknown
)

// FieldPath is a parsed dotted column path such as "resource.row.owner".
type FieldPath struct {
	// Var is the leading variable, e.g. "resource" or "_this".
	Var  string
	Kind FieldKind
	// Column is the referenced column name; set only for FieldRow.
	Column string
}

// ParseFieldPath parses a dotted path into its typed form. It never fails:
// unrecognized shapes come back as FieldUnknown so the evaluator can report
// them with the original spelling.
func ParseFieldPath(path string) FieldPath {
	parts := strings.Split(path, ".")
	fp := FieldPath{Var: parts[0]}
	rest := parts[1:]
	switch {
	case len(rest) == 0:
		fp.Kind = FieldIdentity
	case len(rest) == 1 && rest[0] == "name":
		fp.Kind = FieldName
	case len(rest) == 1 && rest[0] == "schema":
		fp.Kind = FieldSchema
	case len(rest) == 1 && rest[0] == "type":
		fp.Kind = FieldType
	case len(rest) == 1 && rest[0] == "col":
		fp.Kind = FieldCol
	case len(rest) == 2 && rest[0] == "row":
		fp.Kind = FieldRow
		fp.Column = rest[1]
	default:
		fp.Kind = FieldUnknown
	}
	return fp
}

// IsMetadata reports whether the path targets object metadata rather than
// table contents.
func (fp FieldPath) IsMetadata() bool {
	switch fp.Kind {
	case FieldIdentity, FieldName, FieldSchema, FieldType:
		return true
	}
	return false
}
