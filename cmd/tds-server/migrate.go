package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	serverApp "github.com/Amit95688/TDS/internal/delivery/server/app"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres tables used by the task store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Store.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			ctx := cmd.Context()
			store, err := serverApp.OpenPostgresTaskStore(ctx, cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("schema is up to date"))
			return nil
		},
	}
}
