// Package supervisor runs at most one provisioning process at a time on a
// background worker and hands its output to a polling caller.
//
// The caller side (Start, PollEvents, Cancel, State) never blocks on the
// worker: output travels through a single-producer lock-free journal and the
// only other shared state is the shutdown flag and the child pid slot.
package supervisor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/eventlog"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
	"github.com/organicnz/rustsible-gui/pkg/lib/runner"
	"github.com/organicnz/rustsible-gui/pkg/lib/signalgate"
)

// Batch is the events of one run drained by a single poll.
type Batch struct {
	RunID  string
	Events []lib.OutputEvent
}

type Supervisor struct {
	shutdown *signalgate.ShutdownSignal
	runner   *runner.Runner
	build    CommandBuilder
	filter   LineFilter
	logger   *slog.Logger
	metrics  *Metrics
	timeouts Timeouts
	notifier *eventlog.Broadcaster[struct{}]

	state   atomic.Int32
	current atomic.Pointer[run]

	// mu serialises the caller-side operations. The worker never takes it.
	mu      sync.Mutex
	backlog []Batch
}

// run is the handle of one in-flight run.
type run struct {
	id      string
	started time.Time
	proc    *runner.Process
	logger  *slog.Logger

	// pid is the child pid while it is alive, 0 otherwise.
	pid atomic.Int64

	events *eventlog.Log[lib.OutputEvent]
	cursor *eventlog.Cursor[lib.OutputEvent]

	cancel     chan struct{}
	cancelOnce sync.Once
	// done is closed when the worker has returned.
	done chan struct{}
}

func (r *run) requestCancel() {
	r.cancelOnce.Do(func() { close(r.cancel) })
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// New returns an idle supervisor. shutdown is shared with the rest of the
// process; once it is set running children are stopped and Start is refused.
func New(shutdown *signalgate.ShutdownSignal, opts ...Option) *Supervisor {
	s := &Supervisor{
		shutdown: shutdown,
		build:    provisioning.BuildCommand,
		logger:   slog.New(slog.DiscardHandler),
		timeouts: DefaultTimeouts(),
		notifier: eventlog.NewBroadcaster[struct{}](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = runner.NewRunner(s.logger)
	}
	if s.shutdown == nil {
		s.shutdown = signalgate.NewShutdownSignal()
	}
	return s
}

// Start validates settings, spawns the command and returns the new run id
// without waiting for the run. A spawn failure is returned as
// *lib.SpawnError and leaves the supervisor idle.
func (s *Supervisor) Start(settings provisioning.Settings) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown.IsSet() {
		return "", lib.ErrShuttingDown
	}
	if r := s.current.Load(); r != nil && !r.finished() {
		return "", lib.ErrAlreadySpawned
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}
	if r := s.current.Load(); r != nil {
		s.retire(r)
	}

	s.state.Store(int32(lib.RunStateStarting))

	spec, err := s.build(settings)
	if err != nil {
		s.state.Store(int32(lib.RunStateIdle))
		return "", err
	}

	id := lib.NewID()
	proc, err := s.runner.Start(id, spec)
	if err != nil {
		s.state.Store(int32(lib.RunStateIdle))
		s.metrics.spawnFailed()
		s.logger.Warn("failed to spawn provisioning run", "run_id", id, "path", spec.Path, "error", err)
		return "", err
	}

	events := eventlog.New[lib.OutputEvent]()
	r := &run{
		id:      id,
		started: time.Now(),
		proc:    proc,
		logger:  s.logger.With("run_id", id, "pid", proc.PID()),
		events:  events,
		cursor:  events.Cursor(),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.pid.Store(int64(proc.PID()))

	s.current.Store(r)
	s.state.Store(int32(lib.RunStateRunning))
	s.metrics.runStarted()
	r.logger.Info("provisioning run started", "path", spec.Path, "dir", spec.Dir)

	go s.work(r)

	return id, nil
}

// retire moves the undelivered events of a finished run to the backlog and
// drops the handle. Must be called with mu held and r finished.
func (s *Supervisor) retire(r *run) {
	if rest := r.cursor.Drain(); len(rest) > 0 {
		s.backlog = append(s.backlog, Batch{RunID: r.id, Events: rest})
	}
	s.current.CompareAndSwap(r, nil)
}

// PollBatches drains every event buffered so far, grouped by run, without
// blocking. A run whose terminal event is drained is joined and retired.
func (s *Supervisor) PollBatches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.backlog
	s.backlog = nil

	r := s.current.Load()
	if r == nil {
		return out
	}
	if evs := r.cursor.Drain(); len(evs) > 0 {
		out = append(out, Batch{RunID: r.id, Events: evs})
	}
	// The worker closes done right after the terminal event; a run caught in
	// between is retired by the next poll or Start.
	if r.cursor.Done() && r.finished() {
		s.current.CompareAndSwap(r, nil)
	}
	return out
}

// PollEvents drains every event buffered so far without blocking. Events of
// an earlier run always precede those of a later one.
func (s *Supervisor) PollEvents() []lib.OutputEvent {
	var out []lib.OutputEvent
	for _, b := range s.PollBatches() {
		out = append(out, b.Events...)
	}
	return out
}

// Cancel asks the live run to stop. It never blocks and is a no-op when idle.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.current.Load(); r != nil && !r.finished() {
		r.logger.Info("cancellation requested")
		r.requestCancel()
	}
}

// ShutdownAndJoin sets the shutdown flag, stops the live run and waits up to
// timeout for its worker. It returns lib.ErrTimedOut when the worker is still
// running; callers should carry on exiting regardless.
func (s *Supervisor) ShutdownAndJoin(timeout time.Duration) error {
	s.shutdown.Set()

	s.mu.Lock()
	r := s.current.Load()
	if r != nil {
		r.requestCancel()
	}
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
		return nil
	case <-timer.C:
		r.logger.Warn("provisioning worker did not stop in time", "timeout", timeout)
		return lib.ErrTimedOut
	}
}

func (s *Supervisor) State() lib.RunState {
	return lib.RunState(s.state.Load())
}

// RunID is the id of the run whose events are being delivered, or "".
func (s *Supervisor) RunID() string {
	if r := s.current.Load(); r != nil {
		return r.id
	}
	return ""
}

// ChildPID is the pid of the live child, or 0.
func (s *Supervisor) ChildPID() int {
	if r := s.current.Load(); r != nil {
		return int(r.pid.Load())
	}
	return 0
}

// Notify returns a channel that receives after new events are buffered.
// Call cancel to release it.
func (s *Supervisor) Notify() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}
