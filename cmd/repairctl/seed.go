package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/catalog"
	"github.com/celerix-dev/repairdesk/internal/engine"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load catalog and content from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalog.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			return root.withStore(cmd, func(ctx context.Context, s engine.Store) error {
				if err := seed.Apply(ctx, s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories, %d models, %d services, %d prices\n",
					len(seed.Categories), len(seed.Models), len(seed.Services), len(seed.Prices))
				return nil
			})
		},
	}
}
