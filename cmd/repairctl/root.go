package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/repairdesk/internal/config"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/log"
)

type rootOptions struct {
	databaseURL string
	dataDir     string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "repairctl",
		Short:         "Administer a repairdesk installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "SQL database URL (default from DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "embedded store directory (default from REPAIRDESK_DATA_DIR)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage activity")

	cmd.AddCommand(
		newUserCmd(opts),
		newAdminCmd(opts),
		newSeedCmd(opts),
		newMigrateCmd(opts),
		newAuditCmd(opts),
		newRemoteCmd(),
	)
	return cmd
}

// settings merges flags over the loaded configuration.
func (o *rootOptions) settings() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) *log.Logger {
	if !o.verbose {
		return log.Nop()
	}
	return log.New(log.Config{Level: log.LevelDebug, Format: log.FormatText, Output: w})
}

// withStore opens the configured store, runs fn and flushes the store.
func (o *rootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, s engine.Store) error) error {
	cfg, err := o.settings()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, closeStore, err := engine.Open(ctx, cfg.DatabaseURL, cfg.DataDir, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	runErr := fn(ctx, s)
	if err := closeStore(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
