// Package sqlgen renders resolved permissions into the SQL script that
// enforces them: GRANT statements, row-security policies with their
// bootstrap, and the revoke preamble that clears prior grants. All
// identifiers are double-quoted and all literals are escaped, so rule input
// can never break out of the generated statements.
package sqlgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/util"
)

// CompileRowClause translates a row clause into a parenthesized SQL boolean
// expression over the table's columns.
func CompileRowClause(c clause.Clause) (string, error) {
	switch c := c.(type) {
	case *clause.And:
		if len(c.Children) == 0 {
			return "true", nil
		}
		return compileJunction(c.Children, " AND ")
	case *clause.Or:
		if len(c.Children) == 0 {
			return "false", nil
		}
		return compileJunction(c.Children, " OR ")
	case *clause.Not:
		inner, err := CompileRowClause(c.Inner)
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case *clause.Expression:
		left, err := CompileRowClause(c.Left)
		if err != nil {
			return "", err
		}
		right, err := CompileRowClause(c.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, sqlOperator(c.Op), right), nil
	case *clause.Column:
		return util.QuoteIdentifier(c.Path), nil
	case *clause.FunctionCall:
		args := make([]string, len(c.Args))
		for i, a := range c.Args {
			arg, err := CompileRowClause(a)
			if err != nil {
				return "", err
			}
			args[i] = arg
		}
		return fmt.Sprintf("%s(%s)", util.QualifyName(c.Schema, c.Name), strings.Join(args, ", ")), nil
	case *clause.Literal:
		return FormatLiteral(c.Value), nil
	default:
		return "", fmt.Errorf("cannot compile clause to SQL: %s", c)
	}
}

func compileJunction(children []clause.Clause, sep string) (string, error) {
	parts := make([]string, len(children))
	for i, child := range children {
		part, err := CompileRowClause(child)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func sqlOperator(op clause.Operator) string {
	if op == clause.OpNe {
		return "<>"
	}
	return string(op)
}

// FormatLiteral renders a scalar as a SQL literal. Strings go through
// pq.QuoteLiteral; non-finite numbers have no SQL spelling and render as
// null; nil renders as null; times render as quoted RFC 3339 text.
func FormatLiteral(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return pq.QuoteLiteral(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case time.Time:
		return pq.QuoteLiteral(v.Format(time.RFC3339))
	default:
		return pq.QuoteLiteral(fmt.Sprintf("%v", v))
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// EvaluateColumnClause computes the column subset a column clause selects
// from the given column list. A nil result means the clause is trivially
// true and the grant covers all columns. The clause was validated during
// resolution, so evaluation errors here indicate an inconsistency between
// snapshot and render.
func EvaluateColumnClause(c clause.Clause, columns []string) ([]string, error) {
	if c == nil || clause.IsTrue(c) {
		return nil, nil
	}
	// Non-nil even when empty: a clause selecting zero columns must stay
	// distinguishable from the trivially-true nil above, or the grant would
	// silently widen to the whole table.
	selected := []string{}
	for _, column := range columns {
		res := clause.Evaluate(c, columnSemantics(column), false)
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("column clause failed for column %q: %s", column, strings.Join(res.Errors, "; "))
		}
		if res.Match {
			selected = append(selected, column)
		}
	}
	return selected, nil
}

func columnSemantics(column string) clause.Semantics {
	return clause.Semantics{
		Subject: "col",
		GetValue: func(c clause.Clause) (any, error) {
			switch c := c.(type) {
			case *clause.Literal:
				return c.Value, nil
			case *clause.Column:
				if c.Path == "col" {
					return column, nil
				}
				return nil, clause.Validationf("invalid reference %q in column clause", c.Path)
			default:
				return nil, clause.Validationf("unsupported term in column clause: %s", c)
			}
		},
	}
}
