package supervisor

import (
	"log/slog"
	"time"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/runner"
)

// DefaultDrainTimeout bounds how long output is still forwarded after the
// child has exited or been killed.
const DefaultDrainTimeout = 500 * time.Millisecond

// CommandBuilder turns settings into the command to spawn.
type CommandBuilder func(provisioning.Settings) (runner.Spec, error)

// LineFilter rewrites a line before it is forwarded. Returning false drops it.
type LineFilter func(kind lib.EventKind, line string) (string, bool)

// Timeouts bound the cancellation sequence.
type Timeouts struct {
	// TerminatePolls liveness checks every PollInterval follow the graceful
	// signal before the kill.
	TerminatePolls int
	PollInterval   time.Duration
	// ForceWait bounds the wait for exit after the kill.
	ForceWait time.Duration
	// DrainTimeout bounds forwarding of buffered output after exit.
	DrainTimeout time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		TerminatePolls: runner.DefaultTerminatePolls,
		PollInterval:   runner.DefaultPollInterval,
		ForceWait:      runner.DefaultForceWait,
		DrainTimeout:   DefaultDrainTimeout,
	}
}

// CancelBound is the longest a cancelled run can take to emit its terminal
// event, scheduling aside.
func (t Timeouts) CancelBound() time.Duration {
	return time.Duration(t.TerminatePolls)*t.PollInterval + t.ForceWait + t.DrainTimeout
}

type Option func(*Supervisor)

func WithCommandBuilder(b CommandBuilder) Option {
	return func(s *Supervisor) { s.build = b }
}

func WithLineFilter(f LineFilter) Option {
	return func(s *Supervisor) { s.filter = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

func WithTimeouts(t Timeouts) Option {
	return func(s *Supervisor) { s.timeouts = t }
}

func WithRunner(r *runner.Runner) Option {
	return func(s *Supervisor) { s.runner = r }
}
