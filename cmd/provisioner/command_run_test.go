//go:build unix

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/runner"
	"github.com/organicnz/rustsible-gui/pkg/lib/signalgate"
	"github.com/organicnz/rustsible-gui/pkg/lib/supervisor"
)

func TestRunFlags_OverlayOnlyChanged(t *testing.T) {
	f := &runFlags{}
	fl := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f.register(fl)
	require.NoError(t, fl.Parse([]string{
		"--host", " 203.0.113.10 ",
		"--enable", "prompt_install_docker",
		"--disable", "prompt_install_devtools",
		"--var", "prompt_reboot_hour=5",
	}))

	base := provisioning.DefaultSettings()
	base.User = "deploy"
	got := f.apply(fl, base)

	assert.Equal(t, "203.0.113.10", got.Host)
	assert.Equal(t, "deploy", got.User)
	assert.True(t, got.Features["prompt_install_docker"])
	assert.False(t, got.Features["prompt_install_devtools"])
	assert.Equal(t, "5", got.Vars["prompt_reboot_hour"])
}

func localSupervisor(shutdown *signalgate.ShutdownSignal, script string) *supervisor.Supervisor {
	return supervisor.New(shutdown,
		supervisor.WithCommandBuilder(func(provisioning.Settings) (runner.Spec, error) {
			return runner.Spec{Path: "/bin/sh", Args: []string{"-c", script}}, nil
		}),
		supervisor.WithLineFilter(provisioning.AnsibleLineFilter),
		supervisor.WithTimeouts(supervisor.Timeouts{
			TerminatePolls: 3,
			PollInterval:   50 * time.Millisecond,
			ForceWait:      500 * time.Millisecond,
			DrainTimeout:   200 * time.Millisecond,
		}),
	)
}

func localSettings(t *testing.T) provisioning.Settings {
	t.Helper()
	key := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))
	s := provisioning.DefaultSettings()
	s.Host = "203.0.113.10"
	s.KeyPath = key
	return s
}

var discard = slog.New(slog.DiscardHandler)

func TestRunLocal_Success(t *testing.T) {
	shutdown := signalgate.NewShutdownSignal()
	p, out, _ := plainPrinter()

	err := runLocal(localSupervisor(shutdown, `printf '\033[32mok: [web]\033[0m\n'`), shutdown, p, localSettings(t), time.Second, discard)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ok: [web]\n")
	assert.NotContains(t, out.String(), "\033[32m")
	assert.Contains(t, out.String(), "✅ Provisioning completed successfully on 203.0.113.10")
}

func TestRunLocal_FailureExitCode(t *testing.T) {
	shutdown := signalgate.NewShutdownSignal()
	p, _, _ := plainPrinter()

	err := runLocal(localSupervisor(shutdown, "exit 2"), shutdown, p, localSettings(t), time.Second, discard)
	assert.Equal(t, &exitError{code: 2}, err)
}

func TestRunLocal_Interrupted(t *testing.T) {
	shutdown := signalgate.NewShutdownSignal()
	p, out, _ := plainPrinter()

	time.AfterFunc(200*time.Millisecond, shutdown.Set)
	err := runLocal(localSupervisor(shutdown, "exec sleep 30"), shutdown, p, localSettings(t), 5*time.Second, discard)
	assert.Equal(t, &exitError{code: exitInterrupted}, err)
	assert.Contains(t, out.String(), "Provisioning stopped")
}

func TestRunLocal_InvalidSettings(t *testing.T) {
	shutdown := signalgate.NewShutdownSignal()
	p, _, _ := plainPrinter()
	s := localSettings(t)
	s.Host = ""

	err := runLocal(localSupervisor(shutdown, "true"), shutdown, p, s, time.Second, discard)
	assert.ErrorIs(t, err, lib.ErrInvalidConfig)
}

type fakeEvents struct {
	grpc.ClientStream
	events []*apiv1.Event
}

func (f *fakeEvents) Recv() (*apiv1.Event, error) {
	if len(f.events) == 0 {
		return nil, io.EOF
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, nil
}

type fakeClient struct {
	apiv1.ProvisionerClient
	events []*apiv1.Event
}

func (f *fakeClient) Events(context.Context, *apiv1.EventsRequest, ...grpc.CallOption) (grpc.ServerStreamingClient[apiv1.Event], error) {
	return &fakeEvents{events: f.events}, nil
}

func TestStreamEvents(t *testing.T) {
	now := time.Now()
	client := &fakeClient{events: []*apiv1.Event{
		apiv1.NewEvent("r", 1, now, lib.LineEvent("PLAY [all]")),
		apiv1.NewEvent("r", 2, now, lib.CompletedEvent(lib.IntPtr(3))),
	}}
	p, out, _ := plainPrinter()

	err := streamEvents(context.Background(), client, p, "r", "")
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 3, exit.code)
	assert.Contains(t, out.String(), "PLAY [all]")

	truncated := &fakeClient{events: client.events[:1]}
	err = streamEvents(context.Background(), truncated, p, "r", "")
	assert.Equal(t, &exitError{code: exitInterrupted}, err)
}
