package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfeenstra67/sqlauthz/cmd/util"
	"github.com/cfeenstra67/sqlauthz/sqlauthz"
)

var (
	inspectHost     string
	inspectPort     int
	inspectDB       string
	inspectUser     string
	inspectPassword string
)

var InspectCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Show the catalog snapshot rules are resolved against",
	Long:         "Connect to the database and print the entity snapshot (roles, schemas, tables, views, routines, sequences, policies) as JSON. Useful for checking what names rules can reference.",
	RunE:         runInspect,
	SilenceUsage: true,
	PreRunE:      util.PreRunEWithEnvVars(&inspectDB, &inspectUser, &inspectHost, &inspectPort),
}

func init() {
	InspectCmd.Flags().StringVar(&inspectHost, "host", "localhost", "Database server host (env: PGHOST)")
	InspectCmd.Flags().IntVar(&inspectPort, "port", 5432, "Database server port (env: PGPORT)")
	InspectCmd.Flags().StringVar(&inspectDB, "db", "", "Database name (required) (env: PGDATABASE)")
	InspectCmd.Flags().StringVar(&inspectUser, "user", "", "Database user name (required) (env: PGUSER)")
	InspectCmd.Flags().StringVar(&inspectPassword, "password", "", "Database password (optional, can also use PGPASSWORD env var)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cat, err := sqlauthz.InspectCatalog(cmd.Context(), sqlauthz.DatabaseConfig{
		Host:     inspectHost,
		Port:     inspectPort,
		Database: inspectDB,
		User:     inspectUser,
		Password: util.Password(inspectPassword),
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
