package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/cfeenstra67/sqlauthz/internal/logger"
)

// Builder constructs a Catalog snapshot by introspecting pg_catalog.
type Builder struct {
	db *sql.DB
}

// NewBuilder creates a catalog builder for the given database connection.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db}
}

// Build runs the introspection queries and assembles one immutable snapshot.
// The per-entity queries are independent, so they run concurrently.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.buildActors(ctx, cat) })
	g.Go(func() error { return b.buildSchemas(ctx, cat) })
	g.Go(func() error { return b.buildTables(ctx, cat) })
	g.Go(func() error { return b.buildViews(ctx, cat) })
	g.Go(func() error { return b.buildRoutines(ctx, cat) })
	g.Go(func() error { return b.buildSequences(ctx, cat) })
	g.Go(func() error { return b.buildPolicies(ctx, cat) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent catalog snapshot: %w", err)
	}

	logger.Get().Debug("catalog snapshot built",
		"actors", len(cat.Users)+len(cat.Groups),
		"schemas", len(cat.Schemas),
		"tables", len(cat.Tables),
		"policies", len(cat.Policies))
	return cat, nil
}

func (b *Builder) buildActors(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT rolname, rolcanlogin
		FROM pg_catalog.pg_roles
		WHERE rolname NOT LIKE 'pg\_%'
		ORDER BY rolname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var canLogin bool
		if err := rows.Scan(&name, &canLogin); err != nil {
			return fmt.Errorf("failed to scan role: %w", err)
		}
		actor := Actor{Name: name, IsGroup: !canLogin}
		if actor.IsGroup {
			cat.Groups = append(cat.Groups, actor)
		} else {
			cat.Users = append(cat.Users, actor)
		}
	}
	return rows.Err()
}

func (b *Builder) buildSchemas(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT n.nspname, pg_get_userbyid(n.nspowner)
		FROM pg_catalog.pg_namespace n
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND n.nspname NOT LIKE 'pg\_toast%'
		  AND n.nspname NOT LIKE 'pg\_temp%'
		ORDER BY n.nspname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query schemas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s Schema
		if err := rows.Scan(&s.Name, &s.Owner); err != nil {
			return fmt.Errorf("failed to scan schema: %w", err)
		}
		cat.Schemas = append(cat.Schemas, s)
	}
	return rows.Err()
}

func (b *Builder) buildTables(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT n.nspname,
		       c.relname,
		       c.relrowsecurity,
		       COALESCE(
		           (SELECT array_agg(a.attname ORDER BY a.attnum)
		            FROM pg_catalog.pg_attribute a
		            WHERE a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped),
		           '{}')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND n.nspname NOT LIKE 'pg\_toast%'
		ORDER BY n.nspname, c.relname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &Table{}
		var columns pq.StringArray
		if err := rows.Scan(&t.Schema, &t.Name, &t.RLSEnabled, &columns); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		t.Columns = []string(columns)
		cat.Tables = append(cat.Tables, t)
	}
	return rows.Err()
}

func (b *Builder) buildViews(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT n.nspname, c.relname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, c.relname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v View
		if err := rows.Scan(&v.Schema, &v.Name); err != nil {
			return fmt.Errorf("failed to scan view: %w", err)
		}
		cat.Views = append(cat.Views, v)
	}
	return rows.Err()
}

func (b *Builder) buildRoutines(ctx context.Context, cat *Catalog) error {
	// Routines below FirstNormalObjectId or owned by an extension count as
	// builtin and are excluded from permission targeting downstream.
	query := `
		SELECT n.nspname,
		       p.proname,
		       p.prokind,
		       p.oid < 16384 OR EXISTS (
		           SELECT 1 FROM pg_catalog.pg_depend d
		           WHERE d.objid = p.oid AND d.deptype = 'e')
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind IN ('f', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, p.proname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query routines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Routine
		var kind string
		if err := rows.Scan(&r.Schema, &r.Name, &kind, &r.Builtin); err != nil {
			return fmt.Errorf("failed to scan routine: %w", err)
		}
		if kind == "p" {
			cat.Procedures = append(cat.Procedures, r)
		} else {
			cat.Functions = append(cat.Functions, r)
		}
	}
	return rows.Err()
}

func (b *Builder) buildSequences(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT n.nspname, c.relname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'S'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, c.relname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query sequences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s Sequence
		if err := rows.Scan(&s.Schema, &s.Name); err != nil {
			return fmt.Errorf("failed to scan sequence: %w", err)
		}
		cat.Sequences = append(cat.Sequences, s)
	}
	return rows.Err()
}

func (b *Builder) buildPolicies(ctx context.Context, cat *Catalog) error {
	query := `
		SELECT schemaname, tablename, policyname, permissive = 'PERMISSIVE', roles
		FROM pg_catalog.pg_policies
		ORDER BY schemaname, tablename, policyname`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Policy
		var roles pq.StringArray
		if err := rows.Scan(&p.Schema, &p.Table, &p.Name, &p.Permissive, &roles); err != nil {
			return fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Roles = []string(roles)
		cat.Policies = append(cat.Policies, p)
	}
	return rows.Err()
}
