// Package plan represents the outcome of one compile: the resolved
// permission set, the revoke set, and the rendered SQL script, with
// human-readable and JSON presentations for the CLI.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/color"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
	"github.com/cfeenstra67/sqlauthz/internal/version"
)

// Plan is the full result of compiling rules against a catalog snapshot.
type Plan struct {
	Permissions []resolve.Permission `json:"-"`
	RevokeSet   []catalog.Actor      `json:"-"`

	// Script is the rendered SQL, ready to execute.
	Script string `json:"script"`

	CreatedAt   time.Time `json:"created_at"`
	Transaction bool      `json:"transaction"`
}

// NewPlan assembles a plan from the compile pipeline's outputs.
func NewPlan(perms []resolve.Permission, revokeSet []catalog.Actor, script string, transaction bool) *Plan {
	return &Plan{
		Permissions: perms,
		RevokeSet:   revokeSet,
		Script:      script,
		CreatedAt:   time.Now(),
		Transaction: transaction,
	}
}

// Grant is one permission in the JSON output.
type Grant struct {
	Actor     string `json:"actor"`
	Privilege string `json:"privilege"`
	Kind      string `json:"kind"`
	Object    string `json:"object"`
	// RowClause and ColumnClause carry the textual form of any table
	// restrictions, for inspection only.
	RowClause    string `json:"row_clause,omitempty"`
	ColumnClause string `json:"column_clause,omitempty"`
}

// PlanJSON is the stable machine-readable format.
type PlanJSON struct {
	Version         string    `json:"version"`
	SqlauthzVersion string    `json:"sqlauthz_version"`
	CreatedAt       time.Time `json:"created_at"`
	Transaction     bool      `json:"transaction"`
	Summary         Summary   `json:"summary"`
	Grants          []Grant   `json:"grants"`
	Revoked         []string  `json:"revoked"`
	Script          string    `json:"script"`
}

// Summary counts grants by object kind.
type Summary struct {
	Grants  int            `json:"grants"`
	Revoked int            `json:"revoked"`
	ByKind  map[string]int `json:"by_kind"`
}

const planFormatVersion = "1"

// ToJSON renders the plan in the stable JSON format.
func (p *Plan) ToJSON() (string, error) {
	out := PlanJSON{
		Version:         planFormatVersion,
		SqlauthzVersion: version.Version(),
		CreatedAt:       p.CreatedAt,
		Transaction:     p.Transaction,
		Summary: Summary{
			Grants:  len(p.Permissions),
			Revoked: len(p.RevokeSet),
			ByKind:  map[string]int{},
		},
		Revoked: []string{},
		Script:  p.Script,
	}

	for _, perm := range p.Permissions {
		out.Summary.ByKind[string(perm.Kind)]++
		grant := Grant{
			Actor:     perm.Actor.Name,
			Privilege: string(perm.Privilege),
			Kind:      string(perm.Kind),
			Object:    perm.Object.String(),
		}
		if perm.RowClause != nil {
			grant.RowClause = perm.RowClause.String()
		}
		if perm.ColumnClause != nil {
			grant.ColumnClause = perm.ColumnClause.String()
		}
		out.Grants = append(out.Grants, grant)
	}
	for _, actor := range p.RevokeSet {
		out.Revoked = append(out.Revoked, actor.Name)
	}
	sort.Strings(out.Revoked)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling plan: %w", err)
	}
	return string(data), nil
}

// HumanColored renders the plan as text grouped by object kind, with ANSI
// colors when enabled.
func (p *Plan) HumanColored(enabled bool) string {
	return p.HumanReadable(color.New(enabled))
}

// HumanReadable renders the plan as colorized text grouped by object kind.
func (p *Plan) HumanReadable(c *color.Color) string {
	if len(p.Permissions) == 0 && len(p.RevokeSet) == 0 {
		return "No permissions to apply."
	}

	byKind := map[catalog.ObjectKind][]resolve.Permission{}
	for _, perm := range p.Permissions {
		byKind[perm.Kind] = append(byKind[perm.Kind], perm)
	}

	var b strings.Builder
	b.WriteString(c.FormatPlanHeader(len(p.Permissions), len(p.RevokeSet)))
	b.WriteString("\n")

	for _, kind := range catalog.Kinds() {
		perms := byKind[kind]
		if len(perms) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(c.Bold(fmt.Sprintf("%ss:", kind)))
		b.WriteString("\n")
		for _, perm := range perms {
			b.WriteString(c.FormatGrantLine(string(perm.Privilege), perm.Object.String(), perm.Actor.Name))
			if perm.Kind == catalog.KindTable && !perm.Unconditional() {
				b.WriteString(c.Warn(" (restricted)"))
			}
			b.WriteString("\n")
		}
	}

	if len(p.RevokeSet) > 0 {
		b.WriteString("\n")
		b.WriteString(c.Bold("revoked first:"))
		b.WriteString("\n")
		names := make([]string, len(p.RevokeSet))
		for i, actor := range p.RevokeSet {
			names[i] = actor.Name
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(c.FormatRevokeLine(name))
			b.WriteString("\n")
		}
	}

	return b.String()
}
