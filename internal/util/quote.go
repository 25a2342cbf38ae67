// Package util provides identifier quoting helpers shared by the SQL
// renderer and the revoke script generator.
package util

import "strings"

// QuoteIdentifier renders an identifier in double quotes, doubling any
// embedded quote characters. Identifiers are always quoted: the input comes
// from rule files and catalog names, and unconditional quoting keeps the
// generated SQL injection-safe without a reserved-word list.
func QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// QualifyName renders a schema-qualified, quoted object reference.
func QualifyName(schema, name string) string {
	if schema == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(name)
}

// QuoteIdentifiers quotes every identifier in the list, preserving order.
func QuoteIdentifiers(identifiers []string) []string {
	out := make([]string, len(identifiers))
	for i, id := range identifiers {
		out[i] = QuoteIdentifier(id)
	}
	return out
}
