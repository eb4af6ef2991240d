package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-authorisation-service/internal/database"
)

func newMigrateCommand() *cobra.Command {
	var databaseURL string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database connection URL. Can also be set via DATABASE_URL.")

	withMigrator := func(run func(cmd *cobra.Command, migrator *database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			url := envOr(databaseURL, "DATABASE_URL")
			if url == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			migrator, err := database.NewMigrator(url)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := migrator.Close(); closeErr != nil {
					cmd.PrintErrf("warning: failed to close migration runner cleanly: %v\n", closeErr)
				}
			}()

			return run(cmd, migrator)
		}
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, migrator *database.Migrator) error {
			if err := migrator.Up(); err != nil {
				return err
			}
			cmd.Println("Applied all pending migrations.")
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, migrator *database.Migrator) error {
			if err := migrator.Down(); err != nil {
				return err
			}
			cmd.Println("Rolled back all migrations.")
			return nil
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, migrator *database.Migrator) error {
			version, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			cmd.Printf("version=%d dirty=%t\n", version, dirty)
			return nil
		}),
	})

	return migrateCmd
}
