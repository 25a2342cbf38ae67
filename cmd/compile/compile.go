// Package compile implements the compile command: evaluate rules against a
// live database and emit the SQL permission script without executing it.
package compile

import (
	"fmt"
	"os"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/spf13/cobra"

	"github.com/cfeenstra67/sqlauthz/cmd/util"
	"github.com/cfeenstra67/sqlauthz/internal/color"
	"github.com/cfeenstra67/sqlauthz/sqlauthz"
)

var (
	compileHost     string
	compilePort     int
	compileDB       string
	compileUser     string
	compilePassword string

	ruleFiles     []string
	varFiles      []string
	revokeSpec    string
	allowAnyActor bool
	noTransaction bool
	format        string
	validate      bool
	noColor       bool
	outputFile    string
)

var CompileCmd = &cobra.Command{
	Use:          "compile",
	Short:        "Compile rules into a SQL permission script",
	Long:         "Compile Rego authorization rules against the current state of a database into a SQL script of GRANT, REVOKE and CREATE POLICY statements. The script is written to stdout or --output; nothing is executed.",
	RunE:         runCompile,
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&compileDB, &compileUser, &compileHost, &compilePort),
}

func init() {
	CompileCmd.Flags().StringVar(&compileHost, "host", "localhost", "Database server host (env: PGHOST)")
	CompileCmd.Flags().IntVar(&compilePort, "port", 5432, "Database server port (env: PGPORT)")
	CompileCmd.Flags().StringVar(&compileDB, "db", "", "Database name (required) (env: PGDATABASE)")
	CompileCmd.Flags().StringVar(&compileUser, "user", "", "Database user name (required) (env: PGUSER)")
	CompileCmd.Flags().StringVar(&compilePassword, "password", "", "Database password (optional, can also use PGPASSWORD env var)")

	CompileCmd.Flags().StringArrayVar(&ruleFiles, "rules", nil, "Rego rule file or glob (repeatable, required)")
	CompileCmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "YAML data file exposed to rules as data.* (repeatable)")
	CompileCmd.Flags().StringVar(&revokeSpec, "revoke", "referenced", "Revoke policy: all, referenced, or users=a,b")
	CompileCmd.Flags().BoolVar(&allowAnyActor, "allow-any-actor", false, "Permit rules that do not constrain the actor")
	CompileCmd.Flags().BoolVar(&noTransaction, "no-transaction", false, "Leave BEGIN/COMMIT out of the script")
	CompileCmd.Flags().StringVar(&format, "format", "sql", "Output format: sql, text or json")
	CompileCmd.Flags().BoolVar(&validate, "validate", false, "Parse the generated script with the PostgreSQL parser before output")
	CompileCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	CompileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to a file instead of stdout")

	CompileCmd.MarkFlagRequired("rules")
}

// buildOptions collects the compile configuration from flags, env vars and
// the config file.
func buildOptions(cmd *cobra.Command) (sqlauthz.CompileOptions, error) {
	util.ConfigStringSlice(cmd, "rules", "rules", &ruleFiles)
	util.ConfigStringSlice(cmd, "var-file", "var_files", &varFiles)
	util.ConfigString(cmd, "revoke", "revoke", &revokeSpec)

	revoke, err := sqlauthz.ParseRevokePolicy(revokeSpec)
	if err != nil {
		return sqlauthz.CompileOptions{}, err
	}

	return sqlauthz.CompileOptions{
		DatabaseConfig: sqlauthz.DatabaseConfig{
			Host:     compileHost,
			Port:     compilePort,
			Database: compileDB,
			User:     compileUser,
			Password: util.Password(compilePassword),
		},
		Rules:         ruleFiles,
		VarFiles:      varFiles,
		Revoke:        revoke,
		AllowAnyActor: allowAnyActor,
		NoTransaction: noTransaction,
	}, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	compiled, err := sqlauthz.Compile(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if validate {
		if _, err := pg_query.Parse(compiled.Script); err != nil {
			return fmt.Errorf("generated script failed validation: %w", err)
		}
	}

	var out string
	switch format {
	case "sql":
		out = compiled.Script
	case "text":
		out = compiled.HumanReadable(color.New(!noColor && outputFile == ""))
	case "json":
		out, err = compiled.ToJSON()
		if err != nil {
			return err
		}
		out += "\n"
	default:
		return fmt.Errorf("invalid format %q (expected sql, text or json)", format)
	}

	if outputFile != "" {
		return os.WriteFile(outputFile, []byte(out), 0o644)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
