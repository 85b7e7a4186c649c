// Package runner spawns external commands in their own process group with
// captured output pipes and terminates them as a unit.
package runner

import (
	"log/slog"
	"time"
)

const (
	// DefaultTerminatePolls is how many times liveness is checked after the
	// graceful signal before escalating to a kill.
	DefaultTerminatePolls = 5
	// DefaultPollInterval is the pause between liveness checks.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultForceWait bounds the wait for exit after the kill signal.
	DefaultForceWait = 500 * time.Millisecond
)

// Spec describes a command to spawn.
type Spec struct {
	Path string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the current environment.
	Env []string
}

// Runner starts processes. It holds no per-process state; each Start returns
// an independent *Process.
type Runner struct {
	logger *slog.Logger
	// MemoryHigh is written to memory.high of every per-process cgroup when
	// cgroups are in use. Zero leaves the kernel default.
	MemoryHigh int64
}

// NewRunner creates a new Runner. A nil logger discards all logs.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger}
}

// TerminateOptions tunes Process.Terminate. Zero values take the defaults.
type TerminateOptions struct {
	Polls     int
	Interval  time.Duration
	ForceWait time.Duration
}

func (o TerminateOptions) withDefaults() TerminateOptions {
	if o.Polls <= 0 {
		o.Polls = DefaultTerminatePolls
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.ForceWait <= 0 {
		o.ForceWait = DefaultForceWait
	}
	return o
}
