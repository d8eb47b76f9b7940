package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

func newAdminCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin grants",
	}
	cmd.AddCommand(
		newAdminCreateCmd(root),
		newAdminSetActiveCmd(root, "deactivate", false),
		newAdminSetActiveCmd(root, "activate", true),
		newAdminListCmd(root),
	)
	return cmd
}

func newAdminCreateCmd(root *rootOptions) *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Grant an existing account admin access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := schema.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				u, err := s.GetUserByEmail(ctx, normalizeEmail(email))
				if errors.Is(err, engine.ErrNotFound) {
					return fmt.Errorf("no account for %s; run 'repairctl user create' first", email)
				}
				if err != nil {
					return err
				}
				if existing, err := s.FindActiveAdmin(ctx, u.ID); err != nil {
					return err
				} else if existing != nil {
					return fmt.Errorf("%s already has an active %s grant (%s)", u.Email, existing.Role, existing.ID)
				}
				a := &schema.AdminRecord{UserID: u.ID, Email: u.Email, Role: r, IsActive: true}
				if err := s.CreateAdmin(ctx, a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s (admin %s)\n", a.Role, a.Email, a.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", string(schema.RoleEditor), "editor, admin or superadmin")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminSetActiveCmd(root *rootOptions, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <admin-id>",
		Short: use + " an admin grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := schema.AdminID(args[0])
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				if err := s.SetAdminActive(ctx, id, active); err != nil {
					if errors.Is(err, engine.ErrNotFound) {
						return fmt.Errorf("no admin %s", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s active=%t\n", id, active)
				return nil
			})
		},
	}
}

func newAdminListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin grants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				admins, err := s.ListAdmins(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tROLE\tACTIVE\tCREATED")
				for _, a := range admins {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", a.ID, a.Email, a.Role, a.IsActive, a.CreatedAt.Format("2006-01-02"))
				}
				return w.Flush()
			})
		},
	}
}
