package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var BuildVersion = "dev"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Authorisation service CLI",
		Long:          "Operational commands for the authorisation service: schema migrations, users, cache and tokens.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of authctl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newUserCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}

// envOr resolves a flag left empty to the named environment variable.
func envOr(value string, key string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(key))
}
