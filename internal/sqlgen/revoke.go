package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/util"
)

// ScratchSchema returns a fresh schema name for the helper function that
// clears an actor's grants. The random suffix keeps concurrent runs against
// the same database from colliding.
func ScratchSchema() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "sqlauthz_tmp_" + suffix
}

// revokeFunctionBody is the plpgsql helper that strips one role of its
// memberships and object privileges across all non-system schemas. Names
// are interpolated with format(%I/%L) inside the function, so the caller
// only passes the role name as a literal.
const revokeFunctionBody = `
DECLARE
    sch text;
    grp text;
BEGIN
    FOR grp IN
        SELECT r.rolname
        FROM pg_catalog.pg_auth_members m
        JOIN pg_catalog.pg_roles r ON r.oid = m.roleid
        JOIN pg_catalog.pg_roles u ON u.oid = m.member
        WHERE u.rolname = username
    LOOP
        EXECUTE format('REVOKE %I FROM %I', grp, username);
    END LOOP;

    FOR sch IN
        SELECT nspname FROM pg_catalog.pg_namespace
        WHERE nspname NOT LIKE 'pg\_%'
          AND nspname <> 'information_schema'
    LOOP
        EXECUTE format('REVOKE ALL ON ALL TABLES IN SCHEMA %I FROM %I', sch, username);
        EXECUTE format('REVOKE ALL ON ALL SEQUENCES IN SCHEMA %I FROM %I', sch, username);
        EXECUTE format('REVOKE ALL ON ALL ROUTINES IN SCHEMA %I FROM %I', sch, username);
        EXECUTE format('REVOKE ALL ON SCHEMA %I FROM %I', sch, username);
    END LOOP;
END;
`

// RenderRevokeSetup creates the scratch schema and the revoke helper
// function inside it.
func RenderRevokeSetup(scratchSchema string) []string {
	schema := util.QuoteIdentifier(scratchSchema)
	fn := util.QualifyName(scratchSchema, "revoke_permissions")
	return []string{
		fmt.Sprintf("CREATE SCHEMA %s;", schema),
		fmt.Sprintf(
			"CREATE FUNCTION %s(username text) RETURNS void LANGUAGE plpgsql AS $sqlauthz$%s$sqlauthz$;",
			fn, revokeFunctionBody,
		),
	}
}

// RenderRevokeTeardown drops the scratch schema and everything in it.
func RenderRevokeTeardown(scratchSchema string) []string {
	return []string{
		fmt.Sprintf("DROP SCHEMA %s CASCADE;", util.QuoteIdentifier(scratchSchema)),
	}
}

// RenderRevokes produces one helper invocation per actor in the revoke set,
// plus DROP POLICY statements for every existing restrictive policy whose
// role list intersects the set. Stale policies must go before new ones are
// created, or a renamed rule would leave its old policy restricting rows
// forever. Permissive policies are never touched: they only widen access
// and dropping one would narrow unrelated actors.
func RenderRevokes(scratchSchema string, actors []catalog.Actor, cat *catalog.Catalog) []string {
	fn := util.QualifyName(scratchSchema, "revoke_permissions")

	sorted := make([]catalog.Actor, len(actors))
	copy(sorted, actors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	inSet := map[string]bool{}
	var stmts []string
	for _, a := range sorted {
		inSet[a.Name] = true
		stmts = append(stmts, fmt.Sprintf("SELECT %s(%s);", fn, FormatLiteral(a.Name)))
	}

	for _, pol := range cat.Policies {
		if pol.Permissive {
			continue
		}
		for _, role := range pol.Roles {
			if inSet[role] {
				stmts = append(stmts, fmt.Sprintf(
					"DROP POLICY IF EXISTS %s ON %s;",
					util.QuoteIdentifier(pol.Name), util.QualifyName(pol.Schema, pol.Table),
				))
				break
			}
		}
	}

	return stmts
}
