package resolve

import (
	"fmt"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
)

// RevokeKind selects which actors' existing grants are cleared before new
// grants are applied.
type RevokeKind int

const (
	// RevokeReferenced clears the actors appearing in the final
	// permission set. This is the default.
	RevokeReferenced RevokeKind = iota
	// RevokeAll clears every actor in the catalog.
	RevokeAll
	// RevokeUsers clears an explicit list of actors.
	RevokeUsers
)

// RevokePolicy is the revocation rule for one compile.
type RevokePolicy struct {
	Kind RevokeKind
	// Users names the actors to clear; only meaningful for RevokeUsers.
	Users []string
}

// ResolveRevokeSet computes the actors whose grants must be revoked before
// the permission set is applied. Every permission's actor must lie within
// the resolved set: granting to an actor whose prior grants were not cleared
// would accumulate stale privileges across runs.
func ResolveRevokeSet(policy RevokePolicy, perms []Permission, cat *catalog.Catalog) ([]catalog.Actor, error) {
	var errs ErrorList
	var actors []catalog.Actor

	switch policy.Kind {
	case RevokeAll:
		actors = cat.Actors()
	case RevokeUsers:
		for _, name := range policy.Users {
			actor, ok := cat.LookupActor(name)
			if !ok {
				errs.Add(fmt.Sprintf("invalid user in revoke policy: %q", name))
				continue
			}
			actors = append(actors, actor)
		}
	case RevokeReferenced:
		seen := map[string]bool{}
		for _, p := range perms {
			if !seen[p.Actor.Name] {
				seen[p.Actor.Name] = true
				actors = append(actors, p.Actor)
			}
		}
	default:
		return nil, fmt.Errorf("unknown revoke policy kind %d", policy.Kind)
	}

	inSet := map[string]bool{}
	for _, a := range actors {
		inSet[a.Name] = true
	}
	for _, p := range perms {
		if !inSet[p.Actor.Name] {
			errs.Add(fmt.Sprintf("permission granted to %q outside revoke policy scope", p.Actor.Name))
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return actors, nil
}
