package main

import (
	"context"

	"github.com/jellydator/ttlcache/v3"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

func (s *ProvisionerServer) Start(ctx context.Context, request *apiv1.StartRequest) (*apiv1.StartResponse, error) {
	owner, ok := spiffeIdFromContext(ctx)
	if !ok {
		return nil, errNoSpiffeId
	}

	settings := request.Settings
	if request.UseStored {
		settings = s.storedSettings()
	}

	s.mu.Lock()
	id, err := s.sup.Start(settings)
	if err != nil {
		s.mu.Unlock()
		s.logger.Info("start rejected", "owner", owner, "error", err)
		return nil, toStatusError(err)
	}
	j := newJournal(id, owner, settings.Host, s.sup.ChildPID())
	s.runs.Set(id, j, ttlcache.NoTTL)
	s.mu.Unlock()

	s.logger.Info("provisioning run accepted", "run_id", id, "owner", owner, "host", settings.Host)
	return &apiv1.StartResponse{RunID: id, Status: s.status(j)}, nil
}
