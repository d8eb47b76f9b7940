package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

func newUserCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sign-in accounts",
	}
	cmd.AddCommand(newUserCreateCmd(root), newUserListCmd(root))
	return cmd
}

func newUserCreateCmd(root *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long:  "Create an account. The password is read from --password or REPAIRDESK_PASSWORD.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("REPAIRDESK_PASSWORD")
			}
			hash, err := session.HashPassword(password)
			if err != nil {
				return err
			}
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				u := &schema.UserRecord{Email: email, PasswordHash: hash}
				if err := s.CreateUser(ctx, u); err != nil {
					if errors.Is(err, engine.ErrConflict) {
						return fmt.Errorf("an account for %s already exists", email)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				users, err := s.ListUsers(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tCREATED")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Email, u.CreatedAt.Format("2006-01-02"))
				}
				return w.Flush()
			})
		},
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
