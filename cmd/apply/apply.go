// Package apply implements the apply command: compile rules and execute
// the resulting script against the database in one transaction.
package apply

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfeenstra67/sqlauthz/cmd/util"
	"github.com/cfeenstra67/sqlauthz/internal/color"
	"github.com/cfeenstra67/sqlauthz/sqlauthz"
)

var (
	applyHost     string
	applyPort     int
	applyDB       string
	applyUser     string
	applyPassword string

	ruleFiles     []string
	varFiles      []string
	revokeSpec    string
	allowAnyActor bool
	autoApprove   bool
	dryRun        bool
	noColor       bool
	lockTimeout   string
)

var ApplyCmd = &cobra.Command{
	Use:          "apply",
	Short:        "Compile rules and apply the script to the database",
	Long:         "Compile Rego authorization rules against the current database state, show the resulting permission plan, and execute the script in a single transaction after confirmation.",
	RunE:         runApply,
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&applyDB, &applyUser, &applyHost, &applyPort),
}

func init() {
	ApplyCmd.Flags().StringVar(&applyHost, "host", "localhost", "Database server host (env: PGHOST)")
	ApplyCmd.Flags().IntVar(&applyPort, "port", 5432, "Database server port (env: PGPORT)")
	ApplyCmd.Flags().StringVar(&applyDB, "db", "", "Database name (required) (env: PGDATABASE)")
	ApplyCmd.Flags().StringVar(&applyUser, "user", "", "Database user name (required) (env: PGUSER)")
	ApplyCmd.Flags().StringVar(&applyPassword, "password", "", "Database password (optional, can also use PGPASSWORD env var)")

	ApplyCmd.Flags().StringArrayVar(&ruleFiles, "rules", nil, "Rego rule file or glob (repeatable, required)")
	ApplyCmd.Flags().StringArrayVar(&varFiles, "var-file", nil, "YAML data file exposed to rules as data.* (repeatable)")
	ApplyCmd.Flags().StringVar(&revokeSpec, "revoke", "referenced", "Revoke policy: all, referenced, or users=a,b")
	ApplyCmd.Flags().BoolVar(&allowAnyActor, "allow-any-actor", false, "Permit rules that do not constrain the actor")
	ApplyCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Apply without prompting for confirmation")
	ApplyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without executing anything")
	ApplyCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	ApplyCmd.Flags().StringVar(&lockTimeout, "lock-timeout", "", "Maximum time to wait for database locks (e.g. 30s, 5m)")

	ApplyCmd.MarkFlagRequired("rules")
}

func runApply(cmd *cobra.Command, args []string) error {
	util.ConfigStringSlice(cmd, "rules", "rules", &ruleFiles)
	util.ConfigStringSlice(cmd, "var-file", "var_files", &varFiles)
	util.ConfigString(cmd, "revoke", "revoke", &revokeSpec)

	revoke, err := sqlauthz.ParseRevokePolicy(revokeSpec)
	if err != nil {
		return err
	}

	opts := sqlauthz.ApplyOptions{
		CompileOptions: sqlauthz.CompileOptions{
			DatabaseConfig: sqlauthz.DatabaseConfig{
				Host:     applyHost,
				Port:     applyPort,
				Database: applyDB,
				User:     applyUser,
				Password: util.Password(applyPassword),
			},
			Rules:         ruleFiles,
			VarFiles:      varFiles,
			Revoke:        revoke,
			AllowAnyActor: allowAnyActor,
			// The executor owns the transaction.
			NoTransaction: true,
		},
		AutoApprove: autoApprove,
		DryRun:      dryRun,
		NoColor:     noColor,
		LockTimeout: lockTimeout,
	}

	client := sqlauthz.NewClient(opts.DatabaseConfig)

	compiled, err := client.Compile(cmd.Context(), opts.CompileOptions)
	if err != nil {
		return err
	}

	c := color.New(!noColor)
	fmt.Fprintln(cmd.OutOrStdout(), compiled.HumanReadable(c))

	if dryRun {
		return nil
	}
	if len(compiled.Permissions) == 0 && len(compiled.RevokeSet) == 0 {
		return nil
	}

	if !autoApprove {
		ok, err := confirm(cmd)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Apply cancelled.")
			return nil
		}
	}

	if err := client.Execute(cmd.Context(), compiled.Script, lockTimeout); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Permissions applied.")
	return nil
}

func confirm(cmd *cobra.Command) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Apply these permissions? Only 'yes' will be accepted: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}
