package main

import (
	"google.golang.org/grpc"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
)

// eventsBuffer is the per-stream backlog between the journal and the client.
const eventsBuffer = 64

// Events streams a run from its first event and follows it until the
// terminal event. Any authenticated client may read.
func (s *ProvisionerServer) Events(request *apiv1.EventsRequest, streaming grpc.ServerStreamingServer[apiv1.Event]) error {
	j, err := s.lookup(request.RunID)
	if err != nil {
		return err
	}

	ctx := streaming.Context()
	for ev := range j.events.Subscribe(ctx, eventsBuffer) {
		if err := streaming.Send(ev); err != nil {
			return err
		}
	}
	return nil
}
