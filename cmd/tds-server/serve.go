package main

import (
	"github.com/spf13/cobra"

	"github.com/Amit95688/TDS/internal/delivery/server/bootstrap"
	"github.com/Amit95688/TDS/internal/shared/config"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return bootstrap.RunServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("host", "", "listen host (API_HOST)")
	cmd.Flags().Int("port", 0, "listen port (API_PORT)")
	_ = opts.v.BindPFlag(config.KeyAPIHost, cmd.Flags().Lookup("host"))
	_ = opts.v.BindPFlag(config.KeyAPIPort, cmd.Flags().Lookup("port"))
	return cmd
}
