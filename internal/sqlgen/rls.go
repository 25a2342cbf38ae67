package sqlgen

import (
	"fmt"
	"strings"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
	"github.com/cfeenstra67/sqlauthz/internal/util"
)

const policyPrefix = "sqlauthz"

// PolicyName returns the deterministic name for the restrictive policy
// enforcing a row clause, derived from the privilege, table, and actor.
func PolicyName(privilege resolve.Privilege, table catalog.QualifiedName, actor string) string {
	return fmt.Sprintf(
		"%s_%s_%s_%s_%s",
		policyPrefix, strings.ToLower(string(privilege)), table.Schema, table.Name, actor,
	)
}

// DefaultPolicyName returns the name of the permissive baseline policy
// created when row security is first enabled on a table.
func DefaultPolicyName(table catalog.QualifiedName) string {
	return fmt.Sprintf("%s_default_%s_%s", policyPrefix, table.Schema, table.Name)
}

// rlsState tracks which tables have had row security enabled within the
// current script, so the bootstrap runs at most once per table even when
// several permissions carry row clauses for it.
type rlsState struct {
	bootstrapped map[catalog.QualifiedName]bool
}

func newRLSState() *rlsState {
	return &rlsState{bootstrapped: map[catalog.QualifiedName]bool{}}
}

// RenderRowSecurity produces the statements enforcing a permission's row
// clause. For a table that does not yet have row security enabled, the
// first such permission also emits the bootstrap: enable RLS, then create
// a permissive baseline policy so rows stay visible to roles the
// restrictive policies do not mention.
func (s *rlsState) RenderRowSecurity(p resolve.Permission, cat *catalog.Catalog) ([]string, error) {
	if p.RowClause == nil || clause.IsTrue(p.RowClause) {
		return nil, nil
	}
	tbl, ok := cat.LookupTable(p.Object)
	if !ok {
		return nil, fmt.Errorf("table %s not found in catalog snapshot", p.Object)
	}

	table := util.QualifyName(p.Object.Schema, p.Object.Name)

	var stmts []string
	if !tbl.RLSEnabled && !s.bootstrapped[p.Object] {
		s.bootstrapped[p.Object] = true
		stmts = append(stmts,
			fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", table),
			fmt.Sprintf(
				"CREATE POLICY %s ON %s AS PERMISSIVE FOR ALL TO PUBLIC USING (true);",
				util.QuoteIdentifier(DefaultPolicyName(p.Object)), table,
			),
		)
	}

	predicate, err := CompileRowClause(p.RowClause)
	if err != nil {
		return nil, err
	}

	name := util.QuoteIdentifier(PolicyName(p.Privilege, p.Object, p.Actor.Name))
	actor := util.QuoteIdentifier(p.Actor.Name)

	var policy string
	switch p.Privilege {
	case resolve.PrivInsert:
		policy = fmt.Sprintf(
			"CREATE POLICY %s ON %s AS RESTRICTIVE FOR INSERT TO %s WITH CHECK (%s);",
			name, table, actor, predicate,
		)
	case resolve.PrivUpdate:
		policy = fmt.Sprintf(
			"CREATE POLICY %s ON %s AS RESTRICTIVE FOR UPDATE TO %s USING (%s) WITH CHECK (%s);",
			name, table, actor, predicate, predicate,
		)
	case resolve.PrivSelect, resolve.PrivDelete:
		policy = fmt.Sprintf(
			"CREATE POLICY %s ON %s AS RESTRICTIVE FOR %s TO %s USING (%s);",
			name, table, p.Privilege, actor, predicate,
		)
	default:
		return nil, fmt.Errorf("privilege %s does not support a row clause", p.Privilege)
	}

	return append(stmts, policy), nil
}
