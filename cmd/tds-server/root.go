package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Amit95688/TDS/internal/delivery/server/bootstrap"
	"github.com/Amit95688/TDS/internal/shared/config"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type rootOptions struct {
	configFile string
	envFile    string
	v          *viper.Viper
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(config.LoadOptions{
		EnvFile:    o.envFile,
		ConfigFile: o.configFile,
		Viper:      o.v,
	})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "tds-server",
		Short:         "Build, deploy and revise LLM-generated web apps",
		Version:       bootstrap.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./tds.yaml if present)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newConfigCommand(opts),
	)
	return root
}
