// Package reaper removes stale instances of the running executable left over
// from earlier sessions. It escalates through several termination phases and
// always returns a report instead of failing.
package reaper

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/procdir"
)

const (
	DefaultGraceWait = 500 * time.Millisecond
	DefaultForceWait = 500 * time.Millisecond
)

// Phase identifies one escalation step.
type Phase int

const (
	PhaseParentRelease Phase = iota
	PhaseGraceful
	PhaseForceful
	PhaseSweep
	PhaseServiceManager
	PhaseProcessGroup
)

func (p Phase) String() string {
	switch p {
	case PhaseParentRelease:
		return "parent_release"
	case PhaseGraceful:
		return "graceful"
	case PhaseForceful:
		return "forceful"
	case PhaseSweep:
		return "sweep"
	case PhaseServiceManager:
		return "service_manager"
	case PhaseProcessGroup:
		return "process_group"
	default:
		return "unknown"
	}
}

// PhaseResult records what one phase did.
type PhaseResult struct {
	Phase Phase
	// Targets are the stale instances present when the phase started.
	Targets int
	// Requested lists the PIDs (or process group ids) a request was sent to.
	Requested []int
	// Failures counts requests the OS rejected.
	Failures int
	// Skipped is set when the killer lacks the capability for the phase.
	Skipped bool
}

// Report summarises a reap.
type Report struct {
	Found      int
	Eliminated int
	Remaining  []lib.ProcessRecord
	Phases     []PhaseResult
}

type Reaper struct {
	dir       procdir.Directory
	killer    Killer
	name      string
	parentPID int
	graceWait time.Duration
	forceWait time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Reaper)

// WithName sets the executable name of the instances to reap.
func WithName(name string) Option {
	return func(r *Reaper) { r.name = name }
}

// WithParentPID overrides the parent of the current process, which is never
// signalled.
func WithParentPID(pid int) Option {
	return func(r *Reaper) { r.parentPID = pid }
}

func WithWaits(grace, force time.Duration) Option {
	return func(r *Reaper) {
		r.graceWait = grace
		r.forceWait = force
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) { r.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

// New returns a reaper for instances of the current executable.
func New(dir procdir.Directory, killer Killer, opts ...Option) *Reaper {
	r := &Reaper{
		dir:       dir,
		killer:    killer,
		parentPID: os.Getppid(),
		graceWait: DefaultGraceWait,
		forceWait: DefaultForceWait,
		logger:    slog.New(slog.DiscardHandler),
	}
	if exe, err := os.Executable(); err == nil {
		r.name = filepath.Base(exe)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reap terminates every other instance of the executable. selfPID and the
// process's own parent and process group are never signalled.
func (r *Reaper) Reap(ctx context.Context, selfPID int) Report {
	logger := r.logger.With("name", r.name, "self_pid", selfPID)

	initial := r.targets(logger, selfPID, nil)
	report := Report{Found: len(initial)}
	if len(initial) == 0 {
		logger.Debug("no stale instances found")
		r.metrics.recordReport(report)
		return report
	}
	logger.Info("stale instances found", "count", len(initial))

	known := make(map[int]struct{}, len(initial))
	for _, rec := range initial {
		known[rec.PID] = struct{}{}
	}

	phases := []func(*slog.Logger, int, []lib.ProcessRecord) PhaseResult{
		r.releaseParents,
		r.graceful,
		r.forceful,
		r.sweep,
		r.removeFromServiceManager,
		r.killGroups,
	}
	for _, phase := range phases {
		if ctx.Err() != nil {
			logger.Warn("reap interrupted", "error", ctx.Err())
			break
		}
		targets := r.targets(logger, selfPID, known)
		if len(targets) == 0 {
			break
		}
		res := phase(logger, selfPID, targets)
		res.Targets = len(targets)
		r.metrics.recordRequests(res.Phase, len(res.Requested))
		logger.Debug("reap phase done", "phase", res.Phase, "targets", res.Targets,
			"requested", len(res.Requested), "failures", res.Failures, "skipped", res.Skipped)
		report.Phases = append(report.Phases, res)

		if len(res.Requested) > 0 {
			r.sleep(ctx, r.waitAfter(res.Phase))
		}
	}

	report.Remaining = r.targets(logger, selfPID, known)
	report.Eliminated = report.Found - len(report.Remaining)
	if len(report.Remaining) > 0 {
		logger.Warn("stale instances survived the reap", "remaining", len(report.Remaining))
		for _, rec := range report.Remaining {
			logger.Warn("stale instance", "pid", rec.PID, "state", rec.State)
		}
	} else {
		logger.Info("stale instances eliminated", "count", report.Eliminated)
	}
	r.metrics.recordReport(report)
	return report
}

func (r *Reaper) waitAfter(p Phase) time.Duration {
	if p == PhaseParentRelease || p == PhaseGraceful {
		return r.graceWait
	}
	return r.forceWait
}

func (r *Reaper) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// targets scans for instances by name, keeping only the PIDs in known when
// known is non-nil. Scan failures count as an empty scan.
func (r *Reaper) targets(logger *slog.Logger, selfPID int, known map[int]struct{}) []lib.ProcessRecord {
	if r.name == "" {
		return nil
	}
	seq, err := procdir.FindByName(r.dir, r.name)
	if err != nil {
		logger.Warn("process scan failed", "error", err)
		return nil
	}
	var out []lib.ProcessRecord
	for rec := range seq {
		if !r.signalable(rec, selfPID) {
			continue
		}
		if known != nil {
			if _, ok := known[rec.PID]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func (r *Reaper) signalable(rec lib.ProcessRecord, selfPID int) bool {
	return rec.PID != selfPID && rec.PID != r.parentPID && !Protected(rec)
}

func (r *Reaper) scanAll(logger *slog.Logger) map[int]lib.ProcessRecord {
	seq, err := r.dir.List()
	if err != nil {
		logger.Warn("process scan failed", "error", err)
		return nil
	}
	all := make(map[int]lib.ProcessRecord)
	for rec := range seq {
		all[rec.PID] = rec
	}
	return all
}

func (r *Reaper) terminate(logger *slog.Logger, res *PhaseResult, pid int, force bool) {
	res.Requested = append(res.Requested, pid)
	if err := r.killer.Terminate(pid, force); err != nil {
		res.Failures++
		logger.Debug("termination request failed", "phase", res.Phase, "pid", pid, "error", err)
	}
}

// releaseParents kills the parents of stuck targets so the OS can reparent
// and collect them.
func (r *Reaper) releaseParents(logger *slog.Logger, selfPID int, targets []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseParentRelease}

	var stuck []lib.ProcessRecord
	for _, t := range targets {
		if t.State.Stuck() && t.ParentPID > 1 {
			stuck = append(stuck, t)
		}
	}
	if len(stuck) == 0 {
		return res
	}

	all := r.scanAll(logger)
	seen := map[int]struct{}{}
	for _, t := range stuck {
		parent, ok := all[t.ParentPID]
		if !ok || !r.signalable(parent, selfPID) {
			continue
		}
		if _, dup := seen[parent.PID]; dup {
			continue
		}
		seen[parent.PID] = struct{}{}
		logger.Info("terminating parent of stuck instance", "pid", t.PID, "state", t.State, "parent_pid", parent.PID, "parent", parent.Name)
		r.terminate(logger, &res, parent.PID, true)
	}
	return res
}

func (r *Reaper) graceful(logger *slog.Logger, _ int, targets []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseGraceful}
	for _, t := range targets {
		r.terminate(logger, &res, t.PID, false)
	}
	return res
}

func (r *Reaper) forceful(logger *slog.Logger, _ int, targets []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseForceful}
	for _, t := range targets {
		r.terminate(logger, &res, t.PID, true)
	}
	return res
}

// sweep rescans the whole table and kills every instance by name in one
// batch, not only the initially found ones.
func (r *Reaper) sweep(logger *slog.Logger, selfPID int, _ []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseSweep}
	sweeper, ok := r.killer.(Sweeper)
	if !ok {
		res.Skipped = true
		return res
	}

	for _, rec := range r.targets(logger, selfPID, nil) {
		res.Requested = append(res.Requested, rec.PID)
	}
	if len(res.Requested) == 0 {
		return res
	}
	if err := sweeper.Sweep(res.Requested); err != nil {
		res.Failures++
		logger.Debug("sweep failed", "error", err)
	}
	return res
}

func (r *Reaper) removeFromServiceManager(logger *slog.Logger, _ int, targets []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseServiceManager}
	sm, ok := r.killer.(ServiceManager)
	if !ok {
		res.Skipped = true
		return res
	}
	for _, t := range targets {
		res.Requested = append(res.Requested, t.PID)
		if err := sm.Remove(t); err != nil {
			res.Failures++
			logger.Debug("service manager removal failed", "pid", t.PID, "error", err)
		}
	}
	return res
}

// killGroups kills the process group of every remaining target, except our
// own group and the groups of init and the session leader.
func (r *Reaper) killGroups(logger *slog.Logger, selfPID int, targets []lib.ProcessRecord) PhaseResult {
	res := PhaseResult{Phase: PhaseProcessGroup}
	gk, ok := r.killer.(GroupKiller)
	if !ok {
		res.Skipped = true
		return res
	}

	own, err := gk.ProcessGroup(selfPID)
	if err != nil {
		// Without our own group id no group can be proven safe.
		logger.Warn("cannot resolve own process group", "error", err)
		res.Skipped = true
		return res
	}

	groups := map[int]struct{}{}
	for _, t := range targets {
		pgid, err := gk.ProcessGroup(t.PID)
		if err != nil {
			logger.Debug("cannot resolve process group", "pid", t.PID, "error", err)
			continue
		}
		if pgid <= 1 || pgid == own || pgid == selfPID || pgid == r.parentPID {
			continue
		}
		groups[pgid] = struct{}{}
	}

	for _, pgid := range slices.Sorted(maps.Keys(groups)) {
		res.Requested = append(res.Requested, pgid)
		if err := gk.KillGroup(pgid); err != nil {
			res.Failures++
			logger.Debug("group kill failed", "pgid", pgid, "error", err)
		}
	}
	return res
}
