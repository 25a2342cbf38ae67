package resolve

import (
	"strings"
	"testing"

	"github.com/cfeenstra67/sqlauthz/internal/clause"
)

// actorEq constrains the actor variable to one name.
func actorEq(name string) clause.Clause {
	return eq(col("actor"), lit(name))
}

// actionEq constrains the action variable to one privilege name.
func actionEq(name string) clause.Clause {
	return eq(col("action"), lit(name))
}

func permKeys(perms []Permission) []string {
	var out []string
	for _, p := range perms {
		out = append(out, string(p.Kind)+"/"+string(p.Privilege)+"/"+p.Actor.Name+"/"+p.Object.String())
	}
	return out
}

func containsKey(perms []Permission, key string) bool {
	for _, k := range permKeys(perms) {
		if k == key {
			return true
		}
	}
	return false
}

func TestResolveSimpleTableGrant(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    actorEq("alice"),
		Action:   actionEq("select"),
		Resource: eq(col("resource.name"), lit("posts")),
	}}

	perms, err := Resolve(rules, cat, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !containsKey(perms, "table/SELECT/alice/public.posts") {
		t.Errorf("missing table grant, got %v", permKeys(perms))
	}
	// name == "posts" matches no view, schema or routine.
	for _, key := range permKeys(perms) {
		if !strings.HasPrefix(key, "table/") {
			t.Errorf("unexpected non-table permission %s", key)
		}
	}
}

func TestResolveActionMatchesAcrossKinds(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    actorEq("alice"),
		Action:   actionEq("usage"),
		Resource: clause.True(),
	}}

	perms, err := Resolve(rules, cat, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// USAGE exists for schemas and sequences only.
	if !containsKey(perms, "schema/USAGE/alice/public") {
		t.Errorf("missing schema usage grant: %v", permKeys(perms))
	}
	if !containsKey(perms, "sequence/USAGE/alice/public.posts_id_seq") {
		t.Errorf("missing sequence usage grant: %v", permKeys(perms))
	}
	for _, key := range permKeys(perms) {
		if strings.HasPrefix(key, "table/") {
			t.Errorf("USAGE must not match a table privilege: %s", key)
		}
	}
}

func TestResolveGroupActors(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    eq(col("actor.type"), lit("group")),
		Action:   actionEq("select"),
		Resource: eq(col("resource.name"), lit("posts")),
	}}

	perms, err := Resolve(rules, cat, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !containsKey(perms, "table/SELECT/analysts/public.posts") {
		t.Errorf("group actor not resolved: %v", permKeys(perms))
	}
	if containsKey(perms, "table/SELECT/alice/public.posts") {
		t.Errorf("user matched a group-only clause: %v", permKeys(perms))
	}
}

func TestResolveUnscopedActorRejected(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    clause.True(),
		Action:   actionEq("select"),
		Resource: eq(col("resource.name"), lit("posts")),
	}}

	_, err := Resolve(rules, cat, Options{})
	if err == nil || !strings.Contains(err.Error(), "does not specify a user") {
		t.Fatalf("err = %v, want unscoped actor error", err)
	}

	perms, err := Resolve(rules, cat, Options{AllowAnyActor: true})
	if err != nil {
		t.Fatalf("Resolve with AllowAnyActor: %v", err)
	}
	// Every actor, including the group, receives the grant.
	for _, name := range []string{"alice", "bob", "analysts"} {
		if !containsKey(perms, "table/SELECT/"+name+"/public.posts") {
			t.Errorf("missing grant for %s: %v", name, permKeys(perms))
		}
	}
}

func TestResolveUnknownActorFails(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    actorEq("ghost"),
		Action:   actionEq("select"),
		Resource: eq(col("resource.name"), lit("posts")),
	}}

	_, err := Resolve(rules, cat, Options{})
	if err == nil || !strings.Contains(err.Error(), `unknown user or group "ghost"`) {
		t.Fatalf("err = %v, want unknown actor error", err)
	}
}

// An actor clause of canonical False matches nothing and produces an empty,
// error-free permission set.
func TestResolveFalseActorClauseYieldsNothing(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    clause.False(),
		Action:   actionEq("select"),
		Resource: clause.True(),
	}}

	perms, err := Resolve(rules, cat, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("expected no permissions, got %v", permKeys(perms))
	}
}

func TestResolveDisjunctiveActorClause(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    or(actorEq("alice"), actorEq("bob")),
		Action:   actionEq("select"),
		Resource: eq(col("resource.name"), lit("posts")),
	}}

	perms, err := Resolve(rules, cat, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !containsKey(perms, "table/SELECT/alice/public.posts") || !containsKey(perms, "table/SELECT/bob/public.posts") {
		t.Errorf("disjunction lost an actor: %v", permKeys(perms))
	}
}

func TestResolveRowPredicateOnUnsupportedPrivilege(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{{
		Actor:    actorEq("alice"),
		Action:   actionEq("truncate"),
		Resource: and(
			eq(col("resource.name"), lit("posts")),
			eq(col("resource.row.author"), lit("alice")),
		),
	}}

	_, err := Resolve(rules, cat, Options{})
	if err == nil || !strings.Contains(err.Error(), "row-level predicate cannot apply to privilege TRUNCATE") {
		t.Fatalf("err = %v, want row predicate rejection", err)
	}
}

// All branches are validated and every distinct error is reported once.
func TestResolveAccumulatesAndDeduplicatesErrors(t *testing.T) {
	cat := testCatalog()
	rules := []Rule{
		{
			Actor:    actorEq("ghost"),
			Action:   actionEq("select"),
			Resource: eq(col("resource.name"), lit("posts")),
		},
		{
			Actor:    actorEq("ghost"),
			Action:   actionEq("insert"),
			Resource: eq(col("resource.row.bogus"), lit(1)),
		},
	}

	_, err := Resolve(rules, cat, Options{})
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, `unknown user or group "ghost"`) {
		t.Errorf("missing actor error in %q", msg)
	}
	if !strings.Contains(msg, `invalid column "bogus"`) {
		t.Errorf("missing column error in %q", msg)
	}
	if strings.Count(msg, `unknown user or group "ghost"`) != 1 {
		t.Errorf("duplicate error not collapsed in %q", msg)
	}
}
