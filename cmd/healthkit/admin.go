package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/healthkit/pkg/config"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/validator"
)

var accountRoles = []string{"admin", "member"}

// AccountCreator registers accounts with the identity service.
type AccountCreator interface {
	CreateAccount(ctx context.Context, email, password, role string) (*parse.User, error)
}

func createAdminCmd() *cobra.Command {
	var email, password, role string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account in Parse",
		Long: `Create an account in the Parse server. The role defaults to admin,
the only role allowed to sign in to the web app.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg parse.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			client, err := parse.New(cfg)
			if err != nil {
				return err
			}
			return createAccount(cmd.Context(), client, cmd.OutOrStdout(), email, password, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&role, "role", "admin", "account role ("+strings.Join(accountRoles, ", ")+")")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createAccount(ctx context.Context, client AccountCreator, out io.Writer, email, password, role string) error {
	email = strings.TrimSpace(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.ValidEmail("email", email),
		validator.Required("password", password),
		validator.StrongPassword("password", password, validator.DefaultPasswordPolicy()),
		validator.OneOf("role", role, accountRoles...),
	); err != nil {
		return err
	}

	user, err := client.CreateAccount(ctx, email, password, role)
	if err != nil {
		return fmt.Errorf("create account %s: %w", email, err)
	}
	fmt.Fprintf(out, "created %s account %s (%s)\n", user.Role, user.Email, user.ObjectID)
	return nil
}
