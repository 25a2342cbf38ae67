package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/open-policy-agent/opa/v1/types"

	"github.com/cfeenstra67/sqlauthz/internal/clause"
	"github.com/cfeenstra67/sqlauthz/internal/logger"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

// DefaultQuery is the rule entrypoint: modules define allow in package
// sqlauthz over input.actor, input.action and input.resource.
const DefaultQuery = "data.sqlauthz.allow == true"

// unknowns are the logical variables left symbolic during evaluation.
var unknowns = []string{"input.actor", "input.action", "input.resource"}

// OpaEngine evaluates Rego modules through OPA partial evaluation. One
// residual query per proof of allow becomes one translated rule.
type OpaEngine struct {
	modules map[string]string
	vars    map[string]any
	query   string
}

// Option configures an OpaEngine.
type Option func(*OpaEngine)

// WithVars supplies the static data documents visible to rules as data.*.
func WithVars(vars map[string]any) Option {
	return func(e *OpaEngine) { e.vars = vars }
}

// WithQuery overrides the allow entrypoint query.
func WithQuery(query string) Option {
	return func(e *OpaEngine) { e.query = query }
}

// NewOpaEngine builds an engine over the given named Rego modules.
func NewOpaEngine(modules map[string]string, opts ...Option) *OpaEngine {
	e := &OpaEngine{modules: modules, query: DefaultQuery}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules runs partial evaluation and translates every residual query. The
// literal-substitution context is created here and lives for exactly one
// invocation, so concurrent or repeated compiles cannot observe each
// other's captured literals.
func (e *OpaEngine) Rules(ctx context.Context) ([]resolve.Rule, error) {
	lits := newLiteralContext()

	opts := []func(*rego.Rego){
		rego.Query(e.query),
		rego.Unknowns(unknowns),
		literalBuiltin(lits),
		functionBuiltin(lits),
	}
	for name, src := range e.modules {
		opts = append(opts, rego.Module(name, src))
	}
	if len(e.vars) > 0 {
		opts = append(opts, rego.Store(inmem.NewFromObject(e.vars)))
	}

	pq, err := rego.New(opts...).Partial(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluating rules: %w", err)
	}
	if len(pq.Support) > 0 {
		return nil, fmt.Errorf(
			"rules are too complex to translate: partial evaluation produced %d support modules",
			len(pq.Support),
		)
	}

	var rules []resolve.Rule
	var errs resolve.ErrorList
	for _, body := range pq.Queries {
		rule, err := translateQuery(body, lits)
		if err != nil {
			errs.Add(err.Error())
			continue
		}
		rules = append(rules, rule)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	logger.Get().Debug("rules translated", "modules", len(e.modules), "solutions", len(pq.Queries))
	return rules, nil
}

// literalBuiltin registers sql.literal(x): it captures x into the
// substitution context and returns the placeholder the translator later
// swaps back for a literal clause. Rules use it to force a value into the
// generated SQL verbatim instead of having the engine compare it.
func literalBuiltin(lits *literalContext) func(*rego.Rego) {
	return rego.Function1(
		&rego.Function{
			Name:             "sql.literal",
			Decl:             types.NewFunction(types.Args(types.A), types.S),
			Nondeterministic: true,
		},
		func(_ rego.BuiltinContext, operand *ast.Term) (*ast.Term, error) {
			value, err := termScalar(operand)
			if err != nil {
				return nil, err
			}
			name := lits.capture(&clause.Literal{Value: value})
			return ast.StringTerm(name), nil
		},
	)
}

// functionBuiltin registers sql.function(schema, name): a reference to a
// SQL-callable function, compiled into the row predicate as a call rather
// than evaluated by the engine.
func functionBuiltin(lits *literalContext) func(*rego.Rego) {
	return rego.Function2(
		&rego.Function{
			Name:             "sql.function",
			Decl:             types.NewFunction(types.Args(types.S, types.S), types.S),
			Nondeterministic: true,
		},
		func(_ rego.BuiltinContext, schema, name *ast.Term) (*ast.Term, error) {
			s, ok := schema.Value.(ast.String)
			if !ok {
				return nil, fmt.Errorf("sql.function: schema must be a string")
			}
			n, ok := name.Value.(ast.String)
			if !ok {
				return nil, fmt.Errorf("sql.function: name must be a string")
			}
			placeholder := lits.capture(&clause.FunctionCall{Schema: string(s), Name: string(n)})
			return ast.StringTerm(placeholder), nil
		},
	)
}

// literalContext maps placeholder names to captured clauses. It is scoped
// to one Rules invocation and passed explicitly wherever substitution
// happens.
type literalContext struct {
	mu       sync.Mutex
	prefix   string
	captured []clause.Clause
}

func newLiteralContext() *literalContext {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &literalContext{prefix: "sqlauthz:" + suffix + ":"}
}

func (c *literalContext) capture(cl clause.Clause) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := fmt.Sprintf("%s%d", c.prefix, len(c.captured))
	c.captured = append(c.captured, cl)
	return name
}

// lookup resolves a placeholder back to its captured clause. Strings that
// are not placeholders pass through untouched.
func (c *literalContext) lookup(s string) (clause.Clause, bool) {
	rest, ok := strings.CutPrefix(s, c.prefix)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var idx int
	if _, err := fmt.Sscanf(rest, "%d", &idx); err != nil || idx < 0 || idx >= len(c.captured) {
		return nil, false
	}
	return c.captured[idx], true
}
