// Package rules evaluates Rego authorization rules and translates their
// solutions into clause form. The rule language is consumed as a black box:
// OPA partially evaluates the allow query with the actor, action and
// resource unknown, and the residual queries are narrowed into the closed
// clause union at this boundary. Nothing downstream ever sees an engine
// value.
package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cfeenstra67/sqlauthz/internal/resolve"
)

// Engine produces the translated rule set for one compile. Implementations
// must be safe for repeated invocation: no state carries over between calls.
type Engine interface {
	Rules(ctx context.Context) ([]resolve.Rule, error)
}

// LoadModules reads Rego rule files. Each path may be a file or a glob;
// a pattern matching nothing is an error, since a typo in a rules path
// silently compiling to zero grants would revoke everything.
func LoadModules(paths []string) (map[string]string, error) {
	modules := map[string]string{}
	for _, path := range paths {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("invalid rules pattern %q: %w", path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no rule files match %q", path)
		}
		sort.Strings(matches)
		for _, match := range matches {
			src, err := os.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("reading rule file: %w", err)
			}
			modules[match] = string(src)
		}
	}
	return modules, nil
}

// LoadVars reads YAML variable files and merges them in order, later files
// overriding earlier top-level keys. The merged document becomes the
// engine's data store.
func LoadVars(paths []string) (map[string]any, error) {
	vars := map[string]any{}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading var file: %w", err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(src, &doc); err != nil {
			return nil, fmt.Errorf("parsing var file %q: %w", path, err)
		}
		for k, v := range doc {
			vars[k] = v
		}
	}
	return vars, nil
}
