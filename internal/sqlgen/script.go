package sqlgen

import (
	"sort"
	"strings"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

// Options controls script assembly.
type Options struct {
	// Transaction wraps the script in BEGIN/COMMIT. On by default in the
	// CLI; callers embedding the script in their own transaction turn it
	// off.
	Transaction bool
	// ScratchSchema overrides the generated scratch schema name. Used by
	// tests that need a stable script.
	ScratchSchema string
}

// RenderScript assembles the full enforcement script: revoke setup, one
// revoke per actor in the revoke set, stale policy drops, then every grant
// with its row-security statements, then teardown. Any render error aborts
// the whole script; no partial SQL is ever returned.
func RenderScript(perms []resolve.Permission, revokeSet []catalog.Actor, cat *catalog.Catalog, opts Options) (string, error) {
	scratch := opts.ScratchSchema
	if scratch == "" {
		scratch = ScratchSchema()
	}

	sorted := sortPermissions(perms)

	var stmts []string
	if opts.Transaction {
		stmts = append(stmts, "BEGIN;")
	}
	stmts = append(stmts, RenderRevokeSetup(scratch)...)
	stmts = append(stmts, RenderRevokes(scratch, revokeSet, cat)...)

	rls := newRLSState()
	for _, p := range sorted {
		grant, err := RenderGrant(p, cat)
		if err != nil {
			return "", err
		}
		if grant != "" {
			stmts = append(stmts, grant)
		}

		policies, err := rls.RenderRowSecurity(p, cat)
		if err != nil {
			return "", err
		}
		stmts = append(stmts, policies...)
	}

	stmts = append(stmts, RenderRevokeTeardown(scratch)...)
	if opts.Transaction {
		stmts = append(stmts, "COMMIT;")
	}

	return strings.Join(stmts, "\n") + "\n", nil
}

// sortPermissions orders permissions for stable output: by object kind in
// handler order, then object, actor, and privilege. Resolution preserves
// rule order but merging can reshuffle; the script should not churn between
// runs over identical inputs.
func sortPermissions(perms []resolve.Permission) []resolve.Permission {
	kindRank := map[catalog.ObjectKind]int{}
	for i, k := range catalog.Kinds() {
		kindRank[k] = i
	}

	sorted := make([]resolve.Permission, len(perms))
	copy(sorted, perms)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Kind != b.Kind {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.Object != b.Object {
			if a.Object.Schema != b.Object.Schema {
				return a.Object.Schema < b.Object.Schema
			}
			return a.Object.Name < b.Object.Name
		}
		if a.Actor.Name != b.Actor.Name {
			return a.Actor.Name < b.Actor.Name
		}
		return a.Privilege < b.Privilege
	})
	return sorted
}
