package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/config"
	"github.com/organicnz/rustsible-gui/pkg/lib/procdir"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/reaper"
	"github.com/organicnz/rustsible-gui/pkg/lib/signalgate"
	"github.com/organicnz/rustsible-gui/pkg/lib/supervisor"
)

// daemon wires the supervisor, its gRPC front and the metrics endpoint.
type daemon struct {
	cfg      config.Config
	logger   *slog.Logger
	shutdown *signalgate.ShutdownSignal
	registry *prometheus.Registry

	// supervisorOpts are appended to the defaults; tests swap the command.
	supervisorOpts []supervisor.Option
}

func newDaemon(cfg config.Config, logger *slog.Logger, shutdown *signalgate.ShutdownSignal) *daemon {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &daemon{cfg: cfg, logger: logger, shutdown: shutdown, registry: reg}
}

// installShutdown hooks the OS signals. Signals the process ignores only
// produce a warning.
func installShutdown(logger *slog.Logger) (*signalgate.ShutdownSignal, error) {
	shutdown, err := signalgate.Install()
	var regErr *lib.RegistrationError
	switch {
	case errors.As(err, &regErr):
		logger.Warn("shutdown signals not hooked", "signals", regErr.Signals)
	case err != nil:
		return nil, err
	}
	return shutdown, nil
}

func (d *daemon) reap(ctx context.Context) {
	r := reaper.New(procdir.New(), reaper.NewOSKiller(),
		reaper.WithLogger(d.logger.With("component", "reaper")),
		reaper.WithMetrics(reaper.NewMetrics(d.registry)),
	)
	report := r.Reap(ctx, os.Getpid())
	if report.Found > 0 {
		d.logger.Info("stale instances reaped", "found", report.Found, "eliminated", report.Eliminated, "remaining", report.Remaining)
	}
}

func (d *daemon) openStore() *provisioning.Store {
	path := d.cfg.SettingsPath
	if path == "" {
		var err error
		if path, err = provisioning.DefaultStorePath(); err != nil {
			d.logger.Warn("no settings file location", "error", err)
			return nil
		}
	}
	return provisioning.NewStore(path)
}

// run serves until the shutdown signal is set or ctx is done, then stops the
// live run and drains the servers within the shutdown timeout.
func (d *daemon) run(ctx context.Context, ready func(*GRPCServer)) error {
	if d.cfg.ReapOnStart {
		d.reap(ctx)
	}

	opts := append([]supervisor.Option{
		supervisor.WithLogger(d.logger.With("component", "supervisor")),
		supervisor.WithMetrics(supervisor.NewMetrics(d.registry)),
		supervisor.WithLineFilter(provisioning.AnsibleLineFilter),
	}, d.supervisorOpts...)
	sup := supervisor.New(d.shutdown, opts...)

	srv := NewProvisionerServer(sup, d.openStore(), d.cfg.RetainRuns, d.logger.With("component", "server"))
	defer srv.Close()

	grpcSrv, err := NewGRPCServer(d.cfg, srv)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	d.logger.Info("server (TLS) listening", "address", grpcSrv.Addr().String())
	if ready != nil {
		ready(grpcSrv)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(grpcSrv.Serve)
	g.Go(func() error { return srv.pump(gctx) })
	g.Go(func() error { return srv.watchSettings(gctx) })

	var metricsSrv *http.Server
	if d.cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: d.cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-d.shutdown.Done():
		case <-gctx.Done():
		}
		d.logger.Info("shutting down")

		if err := sup.ShutdownAndJoin(d.cfg.ShutdownTimeout); err != nil {
			d.logger.Warn("provisioning run still stopping", "error", err)
		}
		// The pump is still running so followers receive the terminal event.
		grpcSrv.Stop(d.cfg.ShutdownTimeout)
		if metricsSrv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
			_ = metricsSrv.Shutdown(sctx)
			scancel()
		}
		cancel()
		return nil
	})

	return g.Wait()
}
