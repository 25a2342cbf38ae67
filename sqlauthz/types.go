package sqlauthz

import (
	"fmt"
	"strings"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/plan"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

// Re-export important types for external consumption

// Plan is a compiled permission plan ready to render or execute.
type Plan = plan.Plan

// Permission is one concrete grant in a compiled plan.
type Permission = resolve.Permission

// Catalog is the database entity snapshot rules are resolved against.
type Catalog = catalog.Catalog

// Actor is a database role: a user or a group.
type Actor = catalog.Actor

// DatabaseConfig holds connection details for a PostgreSQL database.
type DatabaseConfig struct {
	Host     string // Database server host
	Port     int    // Database server port
	Database string // Database name
	User     string // Database user
	Password string // Database password (optional)
	SSLMode  string // Connection sslmode (optional)
}

func (c DatabaseConfig) connection() *catalog.ConnectionConfig {
	cfg := &catalog.ConnectionConfig{
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.Database,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		ApplicationName: "sqlauthz",
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	return cfg
}

// RevokeMode selects whose existing grants are cleared before applying.
type RevokeMode string

const (
	// RevokeModeReferenced revokes only the actors the rules grant to.
	RevokeModeReferenced RevokeMode = "referenced"
	// RevokeModeAll revokes every actor in the database.
	RevokeModeAll RevokeMode = "all"
	// RevokeModeUsers revokes an explicit list of actors.
	RevokeModeUsers RevokeMode = "users"
)

// RevokePolicy is the revocation rule for one compile.
type RevokePolicy struct {
	Mode RevokeMode
	// Users names the actors to clear; only meaningful for RevokeModeUsers.
	Users []string
}

func (p RevokePolicy) resolve() (resolve.RevokePolicy, error) {
	switch p.Mode {
	case "", RevokeModeReferenced:
		return resolve.RevokePolicy{Kind: resolve.RevokeReferenced}, nil
	case RevokeModeAll:
		return resolve.RevokePolicy{Kind: resolve.RevokeAll}, nil
	case RevokeModeUsers:
		return resolve.RevokePolicy{Kind: resolve.RevokeUsers, Users: p.Users}, nil
	default:
		return resolve.RevokePolicy{}, fmt.Errorf("unknown revoke mode %q", p.Mode)
	}
}

// ParseRevokePolicy parses the CLI spelling of a revoke policy:
// "referenced", "all", or "users=name1,name2".
func ParseRevokePolicy(s string) (RevokePolicy, error) {
	switch {
	case s == "" || s == string(RevokeModeReferenced):
		return RevokePolicy{Mode: RevokeModeReferenced}, nil
	case s == string(RevokeModeAll):
		return RevokePolicy{Mode: RevokeModeAll}, nil
	case strings.HasPrefix(s, "users="):
		names := strings.Split(strings.TrimPrefix(s, "users="), ",")
		var users []string
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				users = append(users, name)
			}
		}
		if len(users) == 0 {
			return RevokePolicy{}, fmt.Errorf("revoke policy %q names no users", s)
		}
		return RevokePolicy{Mode: RevokeModeUsers, Users: users}, nil
	default:
		return RevokePolicy{}, fmt.Errorf("invalid revoke policy %q (expected all, referenced or users=a,b)", s)
	}
}

// CompileOptions configures one compile run.
type CompileOptions struct {
	DatabaseConfig

	// Rules are paths or globs of Rego rule files (required).
	Rules []string
	// VarFiles are YAML data files exposed to rules as data.*.
	VarFiles []string

	Revoke RevokePolicy

	// AllowAnyActor permits rules that do not constrain the actor.
	AllowAnyActor bool
	// NoTransaction leaves BEGIN/COMMIT out of the rendered script.
	NoTransaction bool
}

// ApplyOptions configures compiling and executing in one operation.
type ApplyOptions struct {
	CompileOptions

	// AutoApprove executes without prompting for confirmation.
	AutoApprove bool
	// DryRun compiles and prints the plan without executing anything.
	DryRun bool
	// NoColor disables colored plan output.
	NoColor bool
	// LockTimeout bounds how long the script waits for locks, e.g. "30s".
	LockTimeout string
}
