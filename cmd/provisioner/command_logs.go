package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

func newLogsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <run_id>",
		Short: "Stream a run's output from the beginning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			return withClient(cmd.Context(), opts, func(client apiv1.ProvisionerClient) error {
				p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.noColor)
				return streamEvents(cmd.Context(), client, p, runID, "")
			})
		},
	}
	return cmd
}

// streamEvents prints a run's events until the stream ends. The exit status
// follows the run's result.
func streamEvents(ctx context.Context, client apiv1.ProvisionerClient, p *printer, runID, host string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Events(ctx, &apiv1.EventsRequest{RunID: runID})
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			// The daemon stopped before the run finished.
			return &exitError{code: exitInterrupted}
		}
		if err != nil {
			return err
		}
		ev := msg.Output()
		p.event(ev, host)
		if msg.Terminal() {
			return exitFor(ev)
		}
	}
}
