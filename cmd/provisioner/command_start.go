package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
)

func newStartCmd(opts *options) *cobra.Command {
	f := &runFlags{}
	var (
		stored bool
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a provisioning run on the daemon",
		Long: "Start a provisioning run on the daemon and print its id. Settings are read\n" +
			"from the local settings file and flags, or from the daemon's file with --stored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &apiv1.StartRequest{UseStored: stored}
			if !stored {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				store, err := settingsStore(cfg.SettingsPath)
				if err != nil {
					return err
				}
				settings, err := store.Load()
				if err != nil {
					settings = provisioning.DefaultSettings()
				}
				req.Settings = f.apply(cmd.Flags(), settings)
			}

			return withClient(cmd.Context(), opts, func(client apiv1.ProvisionerClient) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				resp, err := client.Start(ctx, req)
				cancel()
				if err != nil {
					return err
				}
				if !follow {
					// Print only the run id so it can be captured by scripts.
					fmt.Fprintln(cmd.OutOrStdout(), resp.RunID)
					return nil
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "run", resp.RunID)
				p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.noColor)
				return streamEvents(cmd.Context(), client, p, resp.RunID, resp.Status.Host)
			})
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&stored, "stored", false, "use the daemon's settings file")
	fl.BoolVarP(&follow, "follow", "f", false, "stream the run's output until it ends")
	f.register(fl)
	cmd.MarkFlagsMutuallyExclusive("stored", "host")

	return cmd
}
