package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/engine"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy data between the embedded store and a SQL database",
		Long: `Copy users, admin grants, catalog and content from the embedded store in
--data-dir into the SQL database at --database-url. With --reverse the copy
runs from SQL into the embedded store. Audit entries are not copied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.settings()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("migrate needs --database-url or DATABASE_URL")
			}
			ctx := cmd.Context()
			logger := root.logger(cmd.ErrOrStderr())

			embedded, closeEmbedded, err := engine.Open(ctx, "", cfg.DataDir, logger)
			if err != nil {
				return err
			}
			defer closeEmbedded()
			sqlStore, closeSQL, err := engine.Open(ctx, cfg.DatabaseURL, "", logger)
			if err != nil {
				return err
			}
			defer closeSQL()

			src, dst, direction := embedded, sqlStore, "embedded -> sql"
			if reverse {
				src, dst, direction = sqlStore, embedded, "sql -> embedded"
			}
			if err := engine.Migrate(ctx, src, dst); err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", direction)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "copy from SQL into the embedded store")
	return cmd
}
