package rules

import (
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"

	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

// comparisonOps maps Rego comparison builtins to clause operators.
var comparisonOps = map[string]clause.Operator{
	"eq":    clause.OpEq,
	"equal": clause.OpEq,
	"neq":   clause.OpNe,
	"lt":    clause.OpLt,
	"lte":   clause.OpLe,
	"gt":    clause.OpGt,
	"gte":   clause.OpGe,
}

// translateQuery narrows one residual query into a rule: every expression
// is translated to a clause and assigned to the bucket of the single
// variable it references. An expression constraining two variables at once
// has no SQL rendering and is rejected.
func translateQuery(body ast.Body, lits *literalContext) (resolve.Rule, error) {
	buckets := map[string][]clause.Clause{}
	for _, expr := range body {
		c, vars, err := translateExpr(expr, lits)
		if err != nil {
			return resolve.Rule{}, err
		}
		switch len(vars) {
		case 0:
			return resolve.Rule{}, fmt.Errorf(
				"expression does not reference actor, action or resource: %v", expr,
			)
		case 1:
			for v := range vars {
				buckets[v] = append(buckets[v], c)
			}
		default:
			return resolve.Rule{}, fmt.Errorf(
				"expression references more than one of actor, action and resource: %v", expr,
			)
		}
	}

	return resolve.Rule{
		Actor:    conjunction(buckets["actor"]),
		Action:   conjunction(buckets["action"]),
		Resource: conjunction(buckets["resource"]),
	}, nil
}

func conjunction(parts []clause.Clause) clause.Clause {
	return &clause.And{Children: parts}
}

type varSet map[string]bool

func (s varSet) union(other varSet) varSet {
	for v := range other {
		s[v] = true
	}
	return s
}

func translateExpr(expr *ast.Expr, lits *literalContext) (clause.Clause, varSet, error) {
	c, vars, err := translateExprTerms(expr, lits)
	if err != nil {
		return nil, nil, err
	}
	if expr.Negated {
		c = &clause.Not{Inner: c}
	}
	return c, vars, nil
}

func translateExprTerms(expr *ast.Expr, lits *literalContext) (clause.Clause, varSet, error) {
	if !expr.IsCall() {
		term, ok := expr.Terms.(*ast.Term)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported expression: %v", expr)
		}
		return translateTerm(term, lits)
	}

	operator := expr.Operator().String()
	operands := expr.Operands()

	if op, ok := comparisonOps[operator]; ok && len(operands) == 2 {
		left, lv, err := translateTerm(operands[0], lits)
		if err != nil {
			return nil, nil, err
		}
		right, rv, err := translateTerm(operands[1], lits)
		if err != nil {
			return nil, nil, err
		}
		return &clause.Expression{Op: op, Left: left, Right: right}, lv.union(rv), nil
	}

	// x in {...} translates to a disjunction of equalities.
	if operator == "internal.member_2" && len(operands) == 2 {
		return translateMembership(operands[0], operands[1], lits)
	}

	return nil, nil, fmt.Errorf("unsupported operation %q in rule expression: %v", operator, expr)
}

func translateMembership(elem, collection *ast.Term, lits *literalContext) (clause.Clause, varSet, error) {
	left, vars, err := translateTerm(elem, lits)
	if err != nil {
		return nil, nil, err
	}

	var members []*ast.Term
	switch v := collection.Value.(type) {
	case *ast.Array:
		v.Foreach(func(t *ast.Term) { members = append(members, t) })
	case ast.Set:
		v.Foreach(func(t *ast.Term) { members = append(members, t) })
	default:
		return nil, nil, fmt.Errorf("membership collection must be a constant array or set: %v", collection)
	}

	or := &clause.Or{}
	for _, member := range members {
		right, rv, err := translateTerm(member, lits)
		if err != nil {
			return nil, nil, err
		}
		vars = vars.union(rv)
		or.Children = append(or.Children, &clause.Expression{
			Op: clause.OpEq, Left: left, Right: right,
		})
	}
	return or, vars, nil
}

func translateTerm(term *ast.Term, lits *literalContext) (clause.Clause, varSet, error) {
	switch v := term.Value.(type) {
	case ast.Ref:
		return translateRef(v)
	case ast.String:
		if captured, ok := lits.lookup(string(v)); ok {
			return captured, varSet{}, nil
		}
		return &clause.Literal{Value: string(v)}, varSet{}, nil
	case ast.Number:
		if i, ok := v.Int64(); ok {
			return &clause.Literal{Value: i}, varSet{}, nil
		}
		if f, ok := v.Float64(); ok {
			return &clause.Literal{Value: f}, varSet{}, nil
		}
		return nil, nil, fmt.Errorf("cannot translate number %v", v)
	case ast.Boolean:
		return &clause.Literal{Value: bool(v)}, varSet{}, nil
	case ast.Null:
		return &clause.Literal{Value: nil}, varSet{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported value in rule expression: %v", term)
	}
}

// translateRef maps an input reference like input.resource.row.owner to a
// column clause with the dotted path resource.row.owner.
func translateRef(ref ast.Ref) (clause.Clause, varSet, error) {
	if len(ref) < 2 || !ref[0].Equal(ast.InputRootDocument) {
		return nil, nil, fmt.Errorf("unsupported reference in rule expression: %v", ref)
	}

	parts := make([]string, 0, len(ref)-1)
	for _, term := range ref[1:] {
		s, ok := term.Value.(ast.String)
		if !ok {
			return nil, nil, fmt.Errorf("reference path must be constant: %v", ref)
		}
		parts = append(parts, string(s))
	}

	switch parts[0] {
	case "actor", "action", "resource":
	default:
		return nil, nil, fmt.Errorf("unknown input variable %q: %v", parts[0], ref)
	}

	return &clause.Column{Path: strings.Join(parts, ".")}, varSet{parts[0]: true}, nil
}

// termScalar converts a ground scalar term to its Go value, for builtins
// that capture rule-supplied values.
func termScalar(term *ast.Term) (any, error) {
	c, vars, err := translateTerm(term, &literalContext{})
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		return nil, fmt.Errorf("value must be constant: %v", term)
	}
	lit, ok := c.(*clause.Literal)
	if !ok {
		return nil, fmt.Errorf("value must be a scalar: %v", term)
	}
	return lit.Value, nil
}
