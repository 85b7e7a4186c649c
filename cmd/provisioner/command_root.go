package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/organicnz/rustsible-gui/pkg/lib/config"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	noColor    bool
}

func (o *options) load() (config.Config, error) {
	return config.Load(o.configPath)
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "provisioner",
		Short:         "Run and control ansible server provisioning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newReapCmd(opts))
	root.AddCommand(newPsCmd())
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newCancelCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newLogsCmd(opts))

	return root
}
