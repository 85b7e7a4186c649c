package main

import (
	"context"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

// Cancel asks the run to stop and returns at once; the terminal event
// arrives on the Events stream. Cancelling a finished run is a no-op.
func (s *ProvisionerServer) Cancel(ctx context.Context, request *apiv1.CancelRequest) (*apiv1.CancelResponse, error) {
	j, err := s.lookup(request.RunID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(ctx, j); err != nil {
		return nil, err
	}

	if !j.finished() && s.sup.RunID() == j.id {
		s.logger.Info("cancelling provisioning run", "run_id", j.id)
		s.sup.Cancel()
	}
	return &apiv1.CancelResponse{Status: s.status(j)}, nil
}
