package clause

import (
	"fmt"
)

// ValidationError reports a clause that cannot be evaluated against the
// catalog: an unknown field reference, an unknown column, an unsupported
// operator or an invalid function call. It is always recoverable at the
// point of evaluation and never propagates past the evaluator boundary.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Semantics supplies the leaf interpretation for evaluating a conjunction
// against one concrete subject. Each resource kind builds one per object.
type Semantics struct {
	// Subject is the logical variable the clause constrains, for example
	// "resource". Bare atoms are compared for equality against it.
	Subject string
	// GetValue resolves a leaf clause (Column, Literal or FunctionCall)
	// to a concrete value, or returns a ValidationError.
	GetValue func(c Clause) (any, error)
}

// Result is the three-valued outcome of evaluating a clause: a boolean
// together with any validation errors that were not suppressed.
type Result struct {
	Match  bool
	Errors []string
}

// Evaluate interprets c against the supplied semantics. And/Or/Not combine
// sub-results without short-circuiting so that every branch is validated.
// In strict mode operand errors are always surfaced; otherwise they are
// suppressed once the boolean outcome is already determined (an Or with a
// clean true operand, an And with a clean false operand).
func Evaluate(c Clause, sem Semantics, strict bool) Result {
	switch c := c.(type) {
	case *And:
		return evaluateJunction(c.Children, sem, strict, true)
	case *Or:
		return evaluateJunction(c.Children, sem, strict, false)
	case *Not:
		res := Evaluate(c.Inner, sem, strict)
		return Result{Match: !res.Match, Errors: res.Errors}
	case *Expression:
		return evaluateExpression(c, sem)
	default:
		// A bare atom asserts equality with the implicit subject.
		expr := &Expression{Op: OpEq, Left: &Column{Path: sem.Subject}, Right: c}
		return evaluateExpression(expr, sem)
	}
}

func evaluateJunction(children []Clause, sem Semantics, strict, isAnd bool) Result {
	match := isAnd
	determined := false
	var errs []string
	for _, child := range children {
		res := Evaluate(child, sem, strict)
		clean := len(res.Errors) == 0
		if isAnd {
			if !res.Match && clean {
				determined = true
			}
			match = match && res.Match
		} else {
			if res.Match && clean {
				determined = true
			}
			match = match || res.Match
		}
		errs = append(errs, res.Errors...)
	}
	if determined {
		// The clean operand fixes the outcome regardless of the
		// erroring branches.
		if !strict {
			errs = nil
		}
		return Result{Match: !isAnd, Errors: errs}
	}
	if len(errs) > 0 {
		return Result{Match: false, Errors: errs}
	}
	return Result{Match: match}
}

func evaluateExpression(expr *Expression, sem Semantics) Result {
	var errs []string
	left, err := sem.GetValue(expr.Left)
	if err != nil {
		errs = append(errs, err.Error())
	}
	right, err := sem.GetValue(expr.Right)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	match, err := Compare(expr.Op, left, right)
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}
	return Result{Match: match}
}

// Compare applies a binary comparison operator to two concrete values.
// Numbers compare numerically across integer and float representations;
// strings compare lexicographically; booleans and nil support equality only.
func Compare(op Operator, left, right any) (bool, error) {
	if lf, ok := toFloat(left); ok {
		rf, rok := toFloat(right)
		if !rok {
			return compareEquality(op, left, right)
		}
		return compareOrdered(op, lf, rf)
	}
	if ls, ok := left.(string); ok {
		rs, rok := right.(string)
		if !rok {
			return compareEquality(op, left, right)
		}
		return compareOrdered(op, ls, rs)
	}
	return compareEquality(op, left, right)
}

func compareEquality(op Operator, left, right any) (bool, error) {
	switch op {
	case OpEq:
		return literalEqual(left, right), nil
	case OpNe:
		return !literalEqual(left, right), nil
	default:
		return false, Validationf("operator %q does not apply to %v and %v", op, left, right)
	}
}

func compareOrdered[T float64 | string](op Operator, left, right T) (bool, error) {
	switch op {
	case OpEq:
		return left == right, nil
	case OpNe:
		return left != right, nil
	case OpLt:
		return left < right, nil
	case OpLe:
		return left <= right, nil
	case OpGt:
		return left > right, nil
	case OpGe:
		return left >= right, nil
	default:
		return false, Validationf("unsupported operator %q", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
