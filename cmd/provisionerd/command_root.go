package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/organicnz/rustsible-gui/pkg/lib/config"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "provisionerd",
		Short:         "Provisioning daemon",
		Long:          "Runs ansible provisioning on request over mTLS gRPC, one run at a time.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := cfg.Logger(os.Stderr, "provisionerd")

			shutdown, err := installShutdown(logger)
			if err != nil {
				return err
			}
			return newDaemon(cfg, logger, shutdown).run(cmd.Context(), nil)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")

	return root
}
