package main

import (
	"context"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

func (s *ProvisionerServer) Status(ctx context.Context, request *apiv1.StatusRequest) (*apiv1.StatusResponse, error) {
	j, err := s.lookup(request.RunID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(ctx, j); err != nil {
		return nil, err
	}
	return &apiv1.StatusResponse{Status: s.status(j)}, nil
}
