package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

func newCancelCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <run_id>",
		Short: "Cancel a provisioning run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			return withClient(cmd.Context(), opts, func(client apiv1.ProvisionerClient) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()

				resp, err := client.Cancel(ctx, &apiv1.CancelRequest{RunID: runID})
				if err != nil {
					if grpcCode(err) == codes.PermissionDenied {
						fmt.Fprintln(cmd.ErrOrStderr(), "Forbidden. Only the client that started the run can cancel it.")
						return &exitError{code: 1}
					}
					return err
				}
				printStatusTable(cmd.OutOrStdout(), resp.Status)
				return nil
			})
		},
	}
	return cmd
}
