package resolve

import (
	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

// mergeKey identifies permissions that target the same grant.
type mergeKey struct {
	Kind      catalog.ObjectKind
	Privilege Privilege
	Actor     string
	Object    catalog.QualifiedName
}

// MergePermissions collapses permissions sharing a (kind, privilege, actor,
// object) key into one. Access is the union of every condition that
// independently grants it, so table contributors combine their row and
// column clauses with Or and re-simplify; other kinds are unconditional by
// construction and keep the first contributor. No key present in the input
// is ever dropped.
func MergePermissions(perms []Permission) []Permission {
	var order []mergeKey
	grouped := map[mergeKey][]Permission{}
	for _, p := range perms {
		key := mergeKey{Kind: p.Kind, Privilege: p.Privilege, Actor: p.Actor.Name, Object: p.Object}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], p)
	}

	out := make([]Permission, 0, len(order))
	for _, key := range order {
		group := grouped[key]
		merged := group[0]
		if key.Kind == catalog.KindTable && len(group) > 1 {
			rows := make([]clause.Clause, len(group))
			cols := make([]clause.Clause, len(group))
			for i, p := range group {
				rows[i] = p.RowClause
				cols[i] = p.ColumnClause
			}
			merged.RowClause = clause.Optimize(&clause.Or{Children: rows})
			merged.ColumnClause = clause.Optimize(&clause.Or{Children: cols})
		}
		out = append(out, merged)
	}
	return out
}
