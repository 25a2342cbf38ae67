package clause

// FactorOrClauses expands a clause into disjunctive normal form: a list of
// Or-free conjunctions whose disjunction is equivalent to the input. Grant
// semantics need a concrete yes/no per catalog object, so every disjunct is
// evaluated as an independent case. The input is optimized first and every
// returned conjunction is optimized again.
func FactorOrClauses(c Clause) []Clause {
	return factor(Optimize(c))
}

func factor(c Clause) []Clause {
	switch c := c.(type) {
	case *And:
		// Distribute: the factorings of the parts multiply out as a
		// Cartesian product, so (A or B) and (C or D) yields four
		// conjunctions.
		product := []Clause{True()}
		for _, part := range c.Children {
			var next []Clause
			for _, disjunct := range factor(part) {
				for _, acc := range product {
					next = append(next, &And{Children: []Clause{acc, disjunct}})
				}
			}
			product = next
		}
		return optimizeAll(product)
	case *Or:
		var out []Clause
		for _, child := range c.Children {
			out = append(out, factor(child)...)
		}
		return optimizeAll(out)
	case *Not:
		inner := factor(c.Inner)
		if len(inner) > 1 {
			// De Morgan: not(A or B) factors as not(A) and not(B),
			// which may itself need further expansion.
			negated := make([]Clause, len(inner))
			for i, disjunct := range inner {
				negated[i] = &Not{Inner: disjunct}
			}
			return factor(Optimize(&And{Children: negated}))
		}
		if len(inner) == 0 {
			// The inner clause is unsatisfiable, so its negation
			// is the single trivial conjunction.
			return []Clause{True()}
		}
		// A negated multi-literal conjunction is itself a disjunction
		// of negated literals.
		if conj, ok := inner[0].(*And); ok && len(conj.Children) > 1 {
			negated := make([]Clause, len(conj.Children))
			for i, lit := range conj.Children {
				negated[i] = &Not{Inner: lit}
			}
			return factor(Optimize(&Or{Children: negated}))
		}
		return optimizeAll([]Clause{&Not{Inner: inner[0]}})
	default:
		return []Clause{Optimize(c)}
	}
}

func optimizeAll(clauses []Clause) []Clause {
	var out []Clause
	for _, c := range clauses {
		opt := Optimize(c)
		if IsFalse(opt) {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// ContainsOr reports whether any node of c is a non-empty Or. Empty Or is
// the canonical False and carries no disjunction.
func ContainsOr(c Clause) bool {
	found := false
	Walk(c, func(node Clause) {
		if o, ok := node.(*Or); ok && len(o.Children) > 0 {
			found = true
		}
	})
	return found
}
