package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Amit95688/TDS/internal/delivery/server/bootstrap"
	"github.com/Amit95688/TDS/internal/shared/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			report := config.Validate(cfg)
			printReport(cmd.OutOrStdout(), cfg, report)
			if report.HasErrors() {
				return errors.New("configuration is invalid")
			}
			return nil
		},
	})
	return cmd
}

func printReport(w io.Writer, cfg config.Config, report config.ValidationReport) {
	fmt.Fprintln(w, bold("Configuration"))
	fmt.Fprintf(w, "  listen:     %s\n", cfg.Server.Addr())
	fmt.Fprintf(w, "  store:      %s\n", bootstrap.SelectStoreKind(cfg.Store))
	fmt.Fprintf(w, "  model:      %s\n", cfg.LLM.Model)
	fmt.Fprintf(w, "  tracing:    %s\n", cfg.Tracing.Exporter)
	fmt.Fprintf(w, "  pages wait: %s (revise %s)\n", cfg.Lifecycle.PublishWaitTimeout, cfg.Lifecycle.ReviseWaitTimeout)

	for _, issue := range report.Errors {
		fmt.Fprintf(w, "%s %s\n", red("✗"), issue.Message)
		if issue.Hint != "" {
			fmt.Fprintf(w, "    %s\n", issue.Hint)
		}
	}
	for _, issue := range report.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("!"), issue.Message)
		if issue.Hint != "" {
			fmt.Fprintf(w, "    %s\n", issue.Hint)
		}
	}
	if !report.HasErrors() {
		fmt.Fprintln(w, green("✓ configuration OK"))
	}
}
