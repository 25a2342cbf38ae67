package resolve

import (
	"strings"
	"testing"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

func actorNames(actors []catalog.Actor) []string {
	out := make([]string, len(actors))
	for i, a := range actors {
		out[i] = a.Name
	}
	return out
}

func TestResolveRevokeSet(t *testing.T) {
	cat := testCatalog()
	perms := []Permission{
		tablePerm("alice", "SELECT", "public", "posts", clause.True(), clause.True()),
		tablePerm("analysts", "SELECT", "public", "posts", clause.True(), clause.True()),
	}

	tests := []struct {
		name    string
		policy  RevokePolicy
		perms   []Permission
		want    []string
		wantErr string
	}{
		{
			name:   "referenced collects granted actors once",
			policy: RevokePolicy{Kind: RevokeReferenced},
			perms:  append(perms, perms...),
			want:   []string{"alice", "analysts"},
		},
		{
			name:   "referenced with no permissions is empty",
			policy: RevokePolicy{Kind: RevokeReferenced},
			perms:  nil,
			want:   nil,
		},
		{
			name:   "all covers the catalog",
			policy: RevokePolicy{Kind: RevokeAll},
			perms:  perms,
			want:   []string{"alice", "bob", "analysts"},
		},
		{
			name:   "explicit users resolve against the catalog",
			policy: RevokePolicy{Kind: RevokeUsers, Users: []string{"alice", "analysts"}},
			perms:  perms,
			want:   []string{"alice", "analysts"},
		},
		{
			name:    "unknown explicit user fails",
			policy:  RevokePolicy{Kind: RevokeUsers, Users: []string{"ghost"}},
			perms:   nil,
			wantErr: `invalid user in revoke policy: "ghost"`,
		},
		{
			name:    "granted actor outside scope fails",
			policy:  RevokePolicy{Kind: RevokeUsers, Users: []string{"alice"}},
			perms:   perms,
			wantErr: `permission granted to "analysts" outside revoke policy scope`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actors, err := ResolveRevokeSet(tt.policy, tt.perms, cat)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRevokeSet: %v", err)
			}
			got := actorNames(actors)
			if len(got) != len(tt.want) {
				t.Fatalf("revoke set = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("revoke set = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Revoke containment: every permission's actor lies in the resolved set.
func TestRevokeContainment(t *testing.T) {
	cat := testCatalog()
	perms := []Permission{
		tablePerm("alice", "SELECT", "public", "posts", clause.True(), clause.True()),
		tablePerm("bob", "INSERT", "public", "users", clause.True(), clause.True()),
	}

	for _, policy := range []RevokePolicy{
		{Kind: RevokeReferenced},
		{Kind: RevokeAll},
		{Kind: RevokeUsers, Users: []string{"alice", "bob"}},
	} {
		actors, err := ResolveRevokeSet(policy, perms, cat)
		if err != nil {
			t.Fatalf("policy %v: %v", policy, err)
		}
		inSet := map[string]bool{}
		for _, a := range actors {
			inSet[a.Name] = true
		}
		for _, p := range perms {
			if !inSet[p.Actor.Name] {
				t.Errorf("policy %v: %s granted outside revoke set", policy, p.Actor.Name)
			}
		}
	}
}
