package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"go-authorisation-service/internal/database"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/repository"
)

func newUserCommand() *cobra.Command {
	var databaseURL string

	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	userCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database connection URL. Can also be set via DATABASE_URL.")

	var input model.CreateUser
	var bcryptCost int
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, typically the first administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Struct(input); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}

			url := envOr(databaseURL, "DATABASE_URL")
			if url == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			db, err := database.New(cmd.Context(), url, 2, 0)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := repository.NewUserRepository(db.Pool, bcryptCost).Create(cmd.Context(), input)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(user.Profile(), "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
	createCmd.Flags().StringVar(&input.Username, "username", "", "Unique username")
	createCmd.Flags().StringVar(&input.Name, "name", "", "Display name")
	createCmd.Flags().StringVar(&input.Password, "password", "", "Password, at least 8 characters")
	createCmd.Flags().StringSliceVar(&input.Scopes, "scope", nil, "Granted scope prefix; repeat in priority order")
	createCmd.Flags().IntVar(&bcryptCost, "bcrypt-cost", bcryptCostFromEnv(), "bcrypt cost for the password hash")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")
	_ = createCmd.MarkFlagRequired("name")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func bcryptCostFromEnv() int {
	cost, err := strconv.Atoi(envOr("", "BCRYPT_COST"))
	if err != nil {
		return 12
	}
	return cost
}
