package resolve

import (
	"fmt"
	"strings"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/logger"
)

// Options configures permission resolution.
type Options struct {
	// AllowAnyActor permits rules whose actor clause does not constrain
	// the actor at all. Without it such rules are rejected, which guards
	// against accidentally granting to every role in the database.
	AllowAnyActor bool
}

// Resolve computes the concrete permission set for a list of translated
// rules. Every rule's actor, action and resource clauses are independently
// factored into Or-free conjunctions and the full Cartesian product is
// evaluated against the catalog. All validation errors across all branches
// are accumulated; any error discards the entire result.
func Resolve(rules []Rule, cat *catalog.Catalog, opts Options) ([]Permission, error) {
	var perms []Permission
	var errs ErrorList

	for _, rule := range rules {
		perms = append(perms, resolveRule(rule, cat, opts, &errs)...)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	merged := MergePermissions(perms)
	logger.Get().Debug("permissions resolved", "rules", len(rules), "raw", len(perms), "merged", len(merged))
	return merged, nil
}

func resolveRule(rule Rule, cat *catalog.Catalog, opts Options, errs *ErrorList) []Permission {
	actors := resolveActors(rule.Actor, cat, opts, errs)
	privileges := resolvePrivileges(rule.Action, errs)

	var perms []Permission
	for _, handler := range Handlers() {
		privs := privileges[handler.Kind()]
		if len(privs) == 0 {
			continue
		}
		for _, conj := range clause.FactorOrClauses(rule.Resource) {
			matches, es := handler.EvaluateObjects(cat, conj)
			errs.Add(es...)
			for _, match := range matches {
				for _, priv := range privs {
					if msg := checkPrivilegeClauses(handler.Kind(), priv, match); msg != "" {
						errs.Add(msg)
						continue
					}
					for _, actor := range actors {
						perms = append(perms, Permission{
							Kind:         handler.Kind(),
							Actor:        actor,
							Privilege:    priv,
							Object:       match.Object,
							RowClause:    match.RowClause,
							ColumnClause: match.ColumnClause,
						})
					}
				}
			}
		}
	}
	return perms
}

// resolveActors evaluates the actor clause against every catalog actor,
// returning the union of matches across the clause's conjunctions. Actor
// evaluation is strict: referential errors surface even when the actor in
// question would not have matched anyway.
func resolveActors(actorClause clause.Clause, cat *catalog.Catalog, opts Options, errs *ErrorList) []catalog.Actor {
	var actors []catalog.Actor
	seen := map[string]bool{}

	for _, conj := range clause.FactorOrClauses(actorClause) {
		if unscopedActorClause(conj) {
			if !opts.AllowAnyActor {
				errs.Add("rule does not specify a user")
				continue
			}
			for _, actor := range cat.Actors() {
				if !seen[actor.Name] {
					seen[actor.Name] = true
					actors = append(actors, actor)
				}
			}
			continue
		}

		for _, name := range referencedActorNames(conj) {
			if _, ok := cat.LookupActor(name); !ok {
				errs.Add(fmt.Sprintf("unknown user or group %q", name))
			}
		}

		for _, actor := range cat.Actors() {
			res := clause.Evaluate(conj, actorSemantics(actor), true)
			errs.Add(res.Errors...)
			if res.Match && len(res.Errors) == 0 && !seen[actor.Name] {
				seen[actor.Name] = true
				actors = append(actors, actor)
			}
		}
	}
	return actors
}

// resolvePrivileges tests every privilege of every kind against the action
// clause's conjunctions.
func resolvePrivileges(actionClause clause.Clause, errs *ErrorList) map[catalog.ObjectKind][]Privilege {
	out := map[catalog.ObjectKind][]Privilege{}
	conjs := clause.FactorOrClauses(actionClause)
	for _, handler := range Handlers() {
		seen := map[Privilege]bool{}
		for _, priv := range handler.Privileges() {
			for _, conj := range conjs {
				res := clause.Evaluate(conj, actionSemantics(priv), false)
				errs.Add(res.Errors...)
				if res.Match && len(res.Errors) == 0 && !seen[priv] {
					seen[priv] = true
					out[handler.Kind()] = append(out[handler.Kind()], priv)
				}
			}
		}
	}
	return out
}

// checkPrivilegeClauses rejects row or column predicates attached to a
// privilege PostgreSQL cannot enforce them on. Silently widening the grant
// instead would be a security hazard.
func checkPrivilegeClauses(kind catalog.ObjectKind, priv Privilege, match Match) string {
	if kind != catalog.KindTable {
		return ""
	}
	if !clause.IsTrue(match.RowClause) && !RowPrivilege(priv) {
		return fmt.Sprintf("row-level predicate cannot apply to privilege %s on table %s", priv, match.Object)
	}
	if !clause.IsTrue(match.ColumnClause) && !ColumnPrivilege(priv) {
		return fmt.Sprintf("column filter cannot apply to privilege %s on table %s", priv, match.Object)
	}
	return ""
}

// unscopedActorClause reports whether a conjunction places no constraint on
// the actor: the trivial True, the bare actor variable, or an equality of a
// term with itself.
func unscopedActorClause(conj clause.Clause) bool {
	if clause.IsTrue(conj) {
		return true
	}
	if col, ok := conj.(*clause.Column); ok {
		return clause.ParseFieldPath(col.Path).Kind == clause.FieldIdentity
	}
	if expr, ok := conj.(*clause.Expression); ok && expr.Op == clause.OpEq {
		return clause.Equal(expr.Left, expr.Right)
	}
	return false
}

// referencedActorNames extracts the literal names the conjunction equates
// the actor variable with, for catalog membership validation.
func referencedActorNames(conj clause.Clause) []string {
	var names []string
	clause.Walk(conj, func(node clause.Clause) {
		expr, ok := node.(*clause.Expression)
		if !ok || expr.Op != clause.OpEq {
			return
		}
		for _, pair := range [][2]clause.Clause{{expr.Left, expr.Right}, {expr.Right, expr.Left}} {
			col, ok := pair[0].(*clause.Column)
			if !ok {
				continue
			}
			fp := clause.ParseFieldPath(col.Path)
			if fp.Kind != clause.FieldIdentity && fp.Kind != clause.FieldName {
				continue
			}
			if lit, ok := pair[1].(*clause.Literal); ok {
				if name, ok := lit.Value.(string); ok {
					names = append(names, name)
				}
			}
		}
	})
	return names
}

func actorSemantics(actor catalog.Actor) clause.Semantics {
	return clause.Semantics{
		Subject: "actor",
		GetValue: func(c clause.Clause) (any, error) {
			switch c := c.(type) {
			case *clause.Literal:
				return c.Value, nil
			case *clause.Column:
				switch clause.ParseFieldPath(c.Path).Kind {
				case clause.FieldIdentity, clause.FieldName:
					return actor.Name, nil
				case clause.FieldType:
					if actor.IsGroup {
						return "group", nil
					}
					return "user", nil
				}
				return nil, clause.Validationf("invalid actor field reference: %q", c.Path)
			default:
				return nil, clause.Validationf("unsupported term in actor clause: %s", c)
			}
		},
	}
}

// actionSemantics matches privilege names case-insensitively: rule files
// spell actions in lower case, the privilege enumeration is upper case.
func actionSemantics(priv Privilege) clause.Semantics {
	return clause.Semantics{
		Subject: "action",
		GetValue: func(c clause.Clause) (any, error) {
			switch c := c.(type) {
			case *clause.Literal:
				if s, ok := c.Value.(string); ok {
					return strings.ToUpper(s), nil
				}
				return c.Value, nil
			case *clause.Column:
				if clause.ParseFieldPath(c.Path).Kind == clause.FieldIdentity {
					return string(priv), nil
				}
				return nil, clause.Validationf("invalid action field reference: %q", c.Path)
			default:
				return nil, clause.Validationf("unsupported term in action clause: %s", c)
			}
		},
	}
}
