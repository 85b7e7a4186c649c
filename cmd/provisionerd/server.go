package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/supervisor"
)

// pumpInterval is the fallback poll period when no wake-up arrives.
const pumpInterval = time.Second

type ProvisionerServer struct {
	apiv1.UnimplementedProvisionerServer
	sup    *supervisor.Supervisor
	store  *provisioning.Store
	logger *slog.Logger

	// runs holds running journals without expiry and finished ones for the
	// retention period.
	runs *ttlcache.Cache[string, *journal]

	stored atomic.Pointer[provisioning.Settings]

	// mu makes a run's journal visible before the pump can poll its events.
	mu sync.Mutex
}

// NewProvisionerServer serves sup. store may be nil, in which case
// use_stored requests run with default settings.
func NewProvisionerServer(sup *supervisor.Supervisor, store *provisioning.Store, retain time.Duration, logger *slog.Logger) *ProvisionerServer {
	runs := ttlcache.New(
		ttlcache.WithTTL[string, *journal](retain),
		ttlcache.WithDisableTouchOnHit[string, *journal](),
	)
	runs.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *journal]) {
		logger.Debug("run journal dropped", "run_id", item.Key(), "reason", reason)
	})
	go runs.Start()

	s := &ProvisionerServer{
		sup:    sup,
		store:  store,
		logger: logger,
		runs:   runs,
	}

	settings := provisioning.DefaultSettings()
	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			logger.Warn("failed to load stored settings", "path", store.Path(), "error", err)
		} else {
			settings = loaded
		}
	}
	s.stored.Store(&settings)
	return s
}

func (s *ProvisionerServer) Close() {
	s.runs.Stop()
}

func (s *ProvisionerServer) storedSettings() provisioning.Settings {
	return *s.stored.Load()
}

// watchSettings keeps the stored settings in sync with the file until ctx
// is done. A missing settings directory only disables reloading.
func (s *ProvisionerServer) watchSettings(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	err := s.store.Watch(ctx, s.logger, func(settings provisioning.Settings) {
		s.stored.Store(&settings)
	})
	if err != nil {
		s.logger.Warn("settings reload disabled", "error", err)
	}
	return nil
}

// lookup finds a run by id, retained or live.
func (s *ProvisionerServer) lookup(id string) (*journal, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "run id is required")
	}
	item := s.runs.Get(id)
	if item == nil {
		return nil, status.Errorf(codes.NotFound, "run not found: %s", id)
	}
	return item.Value(), nil
}

func (s *ProvisionerServer) status(j *journal) *apiv1.RunStatus {
	st := j.status()
	if st.State == apiv1.RunStateRunning && s.sup.RunID() == j.id {
		st.PID = s.sup.ChildPID()
	}
	return st
}

// pump moves events from the supervisor into run journals until ctx is done.
func (s *ProvisionerServer) pump(ctx context.Context) error {
	wake, release := s.sup.Notify()
	defer release()

	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	for {
		s.dispatch()
		select {
		case <-ctx.Done():
			s.dispatch()
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

func (s *ProvisionerServer) dispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, batch := range s.sup.PollBatches() {
		item := s.runs.Get(batch.RunID)
		if item == nil {
			s.logger.Warn("dropping events of unknown run", "run_id", batch.RunID, "count", len(batch.Events))
			continue
		}
		j := item.Value()
		for _, ev := range batch.Events {
			if j.append(ev) {
				s.runs.Set(j.id, j, ttlcache.DefaultTTL)
				s.logger.Info("provisioning run finished", "run_id", j.id, "result", ev.String())
			}
		}
	}
}

func toStatusError(err error) error {
	var spawnErr *lib.SpawnError
	switch {
	case errors.Is(err, lib.ErrInvalidConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, lib.ErrAlreadySpawned):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, lib.ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &spawnErr):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Errorf(codes.Internal, "unexpected error: %v", err)
	}
}
