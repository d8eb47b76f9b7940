package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	var f engine.AuditFilter
	var adminID, table string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print audit entries as JSON, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.AdminID = schema.AdminID(adminID)
			f.TableName = schema.AuditTable(table)
			if f.TableName != "" && !f.TableName.Valid() {
				return fmt.Errorf("unknown table %q", table)
			}
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				entries, err := s.ListAudit(ctx, f)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []schema.AuditEntry{}
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().StringVar(&adminID, "admin", "", "only entries by this admin id")
	cmd.Flags().StringVar(&table, "table", "", "only entries on this table")
	cmd.Flags().StringVar(&f.RecordID, "record", "", "only entries on this record id")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum number of entries")
	return cmd
}
