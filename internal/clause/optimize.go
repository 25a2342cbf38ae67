package clause

// Optimize simplifies a clause tree. It deduplicates structurally equal
// And/Or children, flattens nested conjunctions and disjunctions, applies
// short-circuit identities (And containing False is False, Or containing
// True is True, empty collapses to the identity, a singleton collapses to
// its child) and pushes Not through And/Or via De Morgan. Optimize is
// idempotent: Optimize(Optimize(c)) is structurally equal to Optimize(c).
func Optimize(c Clause) Clause {
	switch c := c.(type) {
	case *And:
		return optimizeJunction(c.Children, true)
	case *Or:
		return optimizeJunction(c.Children, false)
	case *Not:
		return optimizeNot(c.Inner)
	case *Expression:
		return &Expression{Op: c.Op, Left: Optimize(c.Left), Right: Optimize(c.Right)}
	case *FunctionCall:
		args := make([]Clause, len(c.Args))
		for i, a := range c.Args {
			args[i] = Optimize(a)
		}
		return &FunctionCall{Schema: c.Schema, Name: c.Name, Args: args}
	default:
		return c
	}
}

// optimizeJunction simplifies the children of an And (isAnd) or Or (!isAnd).
func optimizeJunction(children []Clause, isAnd bool) Clause {
	var kept []Clause
	for _, child := range dedupe(children) {
		opt := Optimize(child)

		// Short-circuit on the absorbing element.
		if isAnd && IsFalse(opt) {
			return False()
		}
		if !isAnd && IsTrue(opt) {
			return True()
		}

		// Drop the identity element.
		if isAnd && IsTrue(opt) {
			continue
		}
		if !isAnd && IsFalse(opt) {
			continue
		}

		// Absorb same-operator nesting.
		switch opt := opt.(type) {
		case *And:
			if isAnd {
				kept = append(kept, opt.Children...)
				continue
			}
		case *Or:
			if !isAnd {
				kept = append(kept, opt.Children...)
				continue
			}
		}
		kept = append(kept, opt)
	}

	// Flattening can surface new duplicates or absorbing elements, so
	// re-run until the child list is stable.
	if changedJunction(children, kept) {
		if isAnd {
			return Optimize(&And{Children: kept})
		}
		return Optimize(&Or{Children: kept})
	}

	kept = dedupe(kept)
	if len(kept) == 1 {
		return kept[0]
	}
	if isAnd {
		return &And{Children: kept}
	}
	return &Or{Children: kept}
}

func changedJunction(before, after []Clause) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if !Equal(before[i], after[i]) {
			return true
		}
	}
	return false
}

// optimizeNot optimizes a negation of inner. De Morgan rewrites of And/Or
// are re-optimized as a whole so nested negations keep collapsing.
func optimizeNot(inner Clause) Clause {
	switch inner := inner.(type) {
	case *And:
		negated := make([]Clause, len(inner.Children))
		for i, child := range inner.Children {
			negated[i] = &Not{Inner: child}
		}
		return Optimize(&Or{Children: negated})
	case *Or:
		negated := make([]Clause, len(inner.Children))
		for i, child := range inner.Children {
			negated[i] = &Not{Inner: child}
		}
		return Optimize(&And{Children: negated})
	case *Not:
		return Optimize(inner.Inner)
	default:
		return &Not{Inner: Optimize(inner)}
	}
}

// dedupe removes structurally equal duplicates, keeping first occurrences.
func dedupe(children []Clause) []Clause {
	var out []Clause
outer:
	for _, child := range children {
		for _, seen := range out {
			if Equal(child, seen) {
				continue outer
			}
		}
		out = append(out, child)
	}
	return out
}
