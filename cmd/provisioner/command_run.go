package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/signalgate"
	"github.com/organicnz/rustsible-gui/pkg/lib/supervisor"
)

// pollInterval is how often the run loop drains new output.
const pollInterval = 100 * time.Millisecond

// exitInterrupted is reported when a run is stopped rather than finished.
const exitInterrupted = 130

type runFlags struct {
	host       string
	user       string
	keyPath    string
	hostname   string
	playbook   string
	workDir    string
	executable string
	enable     []string
	disable    []string
	vars       map[string]string
	noSave     bool
	reapStale  bool
}

// register adds the settings flags shared by run and start.
func (f *runFlags) register(fl *pflag.FlagSet) {
	fl.StringVar(&f.host, "host", "", "target server IP or hostname")
	fl.StringVar(&f.user, "user", "", "SSH user")
	fl.StringVar(&f.keyPath, "key", "", "SSH private key path (~/ is expanded)")
	fl.StringVar(&f.hostname, "hostname", "", "hostname to assign to the server")
	fl.StringVar(&f.playbook, "playbook", "", "playbook file")
	fl.StringVar(&f.workDir, "workdir", "", "directory holding the playbook (default: searched upwards)")
	fl.StringSliceVar(&f.enable, "enable", nil, "feature toggles to turn on")
	fl.StringSliceVar(&f.disable, "disable", nil, "feature toggles to turn off")
	fl.StringToStringVar(&f.vars, "var", nil, "extra vars as name=value")
}

// apply overlays the flags the user actually set onto settings.
func (f *runFlags) apply(fl *pflag.FlagSet, s provisioning.Settings) provisioning.Settings {
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("host", &s.Host, f.host)
	set("user", &s.User, f.user)
	set("key", &s.KeyPath, f.keyPath)
	set("hostname", &s.Hostname, f.hostname)
	set("playbook", &s.Playbook, f.playbook)
	set("workdir", &s.WorkDir, f.workDir)
	set("executable", &s.Executable, f.executable)

	if len(f.enable)+len(f.disable) > 0 && s.Features == nil {
		s.Features = map[string]bool{}
	}
	for _, name := range f.enable {
		s.Features[name] = true
	}
	for _, name := range f.disable {
		s.Features[name] = false
	}
	if len(f.vars) > 0 && s.Vars == nil {
		s.Vars = map[string]string{}
	}
	for k, v := range f.vars {
		s.Vars[k] = v
	}
	return s.Normalize()
}

func newRunCmd(opts *options) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision a server with ansible-playbook and follow its output",
		Long: "Provision a server locally. Settings come from the settings file and are\n" +
			"overridden by flags; the merged settings are saved back unless --no-save is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := cfg.Logger(os.Stderr, "provisioner")

			store, err := settingsStore(cfg.SettingsPath)
			if err != nil {
				return err
			}
			settings, err := store.Load()
			if err != nil {
				logger.Warn("ignoring unreadable settings file", "path", store.Path(), "error", err)
				settings = provisioning.DefaultSettings()
			}
			settings = f.apply(cmd.Flags(), settings)
			if err := settings.Validate(); err != nil {
				return err
			}
			if !f.noSave {
				if err := store.Save(settings); err != nil {
					logger.Warn("failed to save settings", "path", store.Path(), "error", err)
				}
			}

			shutdown, err := installShutdown(logger)
			if err != nil {
				return err
			}
			if f.reapStale {
				reap(cmd.Context(), logger, "")
			}

			sup := supervisor.New(shutdown,
				supervisor.WithLogger(logger),
				supervisor.WithLineFilter(provisioning.AnsibleLineFilter),
			)
			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.noColor)
			return runLocal(sup, shutdown, p, settings, cfg.ShutdownTimeout, logger)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&f.executable, "executable", "", "ansible-playbook binary")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not write the settings file")
	cmd.Flags().BoolVar(&f.reapStale, "reap-stale", false, "terminate stale instances of this program first")

	return cmd
}

func settingsStore(path string) (*provisioning.Store, error) {
	if path == "" {
		var err error
		if path, err = provisioning.DefaultStorePath(); err != nil {
			return nil, err
		}
	}
	return provisioning.NewStore(path), nil
}

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

// runLocal starts the run and prints its events until the terminal one. An
// interrupt stops the child within timeout.
func runLocal(sup *supervisor.Supervisor, shutdown *signalgate.ShutdownSignal, p *printer, settings provisioning.Settings, timeout time.Duration, logger *slog.Logger) error {
	p.bold.Fprintf(p.out, "🚀 Initializing provisioning of %s...\n", settings.Host)
	if _, err := sup.Start(settings); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if ev, ok := printEvents(p, sup.PollEvents(), settings.Host); ok {
			return exitFor(ev)
		}
		select {
		case <-shutdown.Done():
			fmt.Fprintln(p.err, "interrupted, stopping provisioning...")
			if err := sup.ShutdownAndJoin(timeout); err != nil {
				logger.Warn("provisioning run did not stop in time", "error", err)
			}
			if ev, ok := printEvents(p, sup.PollEvents(), settings.Host); ok {
				return exitFor(ev)
			}
			return &exitError{code: exitInterrupted}
		case <-ticker.C:
		}
	}
}

// printEvents prints events and returns the terminal one, if any.
func printEvents(p *printer, events []lib.OutputEvent, host string) (lib.OutputEvent, bool) {
	for _, ev := range events {
		p.event(ev, host)
		if ev.Terminal() {
			return ev, true
		}
	}
	return lib.OutputEvent{}, false
}

func exitFor(ev lib.OutputEvent) error {
	if code := exitCode(ev); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
