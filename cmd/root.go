package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cfeenstra67/sqlauthz/cmd/apply"
	"github.com/cfeenstra67/sqlauthz/cmd/compile"
	"github.com/cfeenstra67/sqlauthz/internal/logger"
	"github.com/cfeenstra67/sqlauthz/internal/version"
)

var (
	Debug   bool
	cfgFile string
)

var RootCmd = &cobra.Command{
	Use:   "sqlauthz",
	Short: "Declarative PostgreSQL permission management",
	Long: fmt.Sprintf(`sqlauthz compiles declarative authorization rules into the SQL that
enforces them: GRANT and REVOKE statements plus row-security policies,
applied transactionally.

Version: %s %s

Commands:
  compile  Compile rules into a SQL permission script
  apply    Compile rules and apply the script to the database
  inspect  Show the catalog snapshot rules are resolved against

Use "sqlauthz [command] --help" for more information about a command.`,
		version.Version(), version.Platform()),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default .sqlauthz.yaml)")
	RootCmd.AddCommand(compile.CompileCmd)
	RootCmd.AddCommand(apply.ApplyCmd)
	RootCmd.AddCommand(InspectCmd)
	RootCmd.AddCommand(VersionCmd)
}

// initConfig wires viper: an optional config file plus SQLAUTHZ_* env vars.
// Subcommands consult viper for defaults of flags the user did not set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".sqlauthz")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("SQLAUTHZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Get().Debug("config file loaded", "path", viper.ConfigFileUsed())
	}
}

func setupLogger() {
	level := slog.LevelInfo
	if Debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger.SetGlobal(slog.New(handler), Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
