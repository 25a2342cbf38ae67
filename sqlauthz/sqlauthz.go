// Package sqlauthz provides a programmatic API for compiling declarative
// authorization rules into the SQL that enforces them. Rules are written in
// Rego; compiling them against a live database produces a transactional
// script of GRANT, REVOKE and CREATE POLICY statements covering role,
// row and column level access.
package sqlauthz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/plan"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
	"github.com/cfeenstra67/sqlauthz/internal/rules"
	"github.com/cfeenstra67/sqlauthz/internal/sqlgen"
)

// Client provides the main interface for sqlauthz operations.
type Client struct {
	defaultDB DatabaseConfig
}

// NewClient creates a new sqlauthz client with default database
// configuration.
func NewClient(dbConfig DatabaseConfig) *Client {
	return &Client{defaultDB: dbConfig}
}

// Compile evaluates the rule files against the current database state and
// returns the permission plan with its rendered SQL script. Nothing is
// executed.
func (c *Client) Compile(ctx context.Context, opts CompileOptions) (*plan.Plan, error) {
	if opts.Host == "" && opts.Database == "" {
		opts.DatabaseConfig = c.defaultDB
	}

	db, err := catalog.Connect(opts.connection())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cat, err := catalog.NewBuilder(db).Build(ctx)
	if err != nil {
		return nil, err
	}
	return CompileAgainst(ctx, cat, opts)
}

// CompileAgainst compiles rules against an already-built catalog snapshot.
// Used by tests and by callers that manage their own introspection.
func CompileAgainst(ctx context.Context, cat *catalog.Catalog, opts CompileOptions) (*plan.Plan, error) {
	if len(opts.Rules) == 0 {
		return nil, fmt.Errorf("no rule files given")
	}
	modules, err := rules.LoadModules(opts.Rules)
	if err != nil {
		return nil, err
	}
	vars, err := rules.LoadVars(opts.VarFiles)
	if err != nil {
		return nil, err
	}

	engine := rules.NewOpaEngine(modules, rules.WithVars(vars))
	ruleSet, err := engine.Rules(ctx)
	if err != nil {
		return nil, err
	}

	perms, err := resolve.Resolve(ruleSet, cat, resolve.Options{AllowAnyActor: opts.AllowAnyActor})
	if err != nil {
		return nil, err
	}

	revokePolicy, err := opts.Revoke.resolve()
	if err != nil {
		return nil, err
	}
	revokeSet, err := resolve.ResolveRevokeSet(revokePolicy, perms, cat)
	if err != nil {
		return nil, err
	}

	script, err := sqlgen.RenderScript(perms, revokeSet, cat, sqlgen.Options{
		Transaction: !opts.NoTransaction,
	})
	if err != nil {
		return nil, err
	}

	return plan.NewPlan(perms, revokeSet, script, !opts.NoTransaction), nil
}

// Apply compiles the rules and executes the resulting script in a single
// transaction. The plan's script is always executed inside an explicit
// transaction here, regardless of NoTransaction, so a failure rolls back
// cleanly.
func (c *Client) Apply(ctx context.Context, opts ApplyOptions) error {
	if opts.Host == "" && opts.Database == "" {
		opts.DatabaseConfig = c.defaultDB
	}

	// The executor owns the transaction.
	opts.NoTransaction = true

	db, err := catalog.Connect(opts.connection())
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.NewBuilder(db).Build(ctx)
	if err != nil {
		return err
	}
	compiled, err := CompileAgainst(ctx, cat, opts.CompileOptions)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return nil
	}
	return ExecuteScript(ctx, db, compiled.Script, opts.LockTimeout)
}

// Execute connects with the client's configuration and runs an
// already-rendered script in one transaction. The script must have been
// compiled with NoTransaction set.
func (c *Client) Execute(ctx context.Context, script, lockTimeout string) error {
	db, err := catalog.Connect(c.defaultDB.connection())
	if err != nil {
		return err
	}
	defer db.Close()
	return ExecuteScript(ctx, db, script, lockTimeout)
}

// ExecuteScript runs a rendered script inside one transaction, optionally
// bounding lock waits.
func ExecuteScript(ctx context.Context, db *sql.DB, script, lockTimeout string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if lockTimeout != "" {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %s", sqlgen.FormatLiteral(lockTimeout))); err != nil {
			return fmt.Errorf("setting lock timeout: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("executing permission script: %w", err)
	}
	return tx.Commit()
}

// Compile is a convenience function to compile rules with a one-off
// configuration.
func Compile(ctx context.Context, opts CompileOptions) (*plan.Plan, error) {
	return NewClient(opts.DatabaseConfig).Compile(ctx, opts)
}

// Apply is a convenience function to compile and execute in one operation.
func Apply(ctx context.Context, opts ApplyOptions) error {
	return NewClient(opts.DatabaseConfig).Apply(ctx, opts)
}

// InspectCatalog connects and returns the entity snapshot rules would be
// resolved against.
func InspectCatalog(ctx context.Context, dbConfig DatabaseConfig) (*catalog.Catalog, error) {
	db, err := catalog.Connect(dbConfig.connection())
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return catalog.NewBuilder(db).Build(ctx)
}
