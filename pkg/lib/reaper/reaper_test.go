package reaper

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

const (
	selfPID   = 500
	parentPID = 400
	exeName   = "provisioner"
)

// fakeTable is a process table that the fake killer mutates.
type fakeTable struct {
	mu    sync.Mutex
	procs map[int]lib.ProcessRecord
	scans int
	err   error
}

func newFakeTable(recs ...lib.ProcessRecord) *fakeTable {
	t := &fakeTable{procs: map[int]lib.ProcessRecord{}}
	for _, r := range recs {
		t.procs[r.PID] = r
	}
	return t
}

func (t *fakeTable) List() (iter.Seq[lib.ProcessRecord], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scans++
	if t.err != nil {
		return nil, t.err
	}
	recs := slices.Collect(maps.Values(t.procs))
	slices.SortFunc(recs, func(a, b lib.ProcessRecord) int { return a.PID - b.PID })
	return slices.Values(recs), nil
}

func (t *fakeTable) remove(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

func (t *fakeTable) has(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.procs[pid]
	return ok
}

type request struct {
	pid   int
	force bool
}

// fakeKiller records requests and removes the target from the table unless
// it is immune.
type fakeKiller struct {
	table *fakeTable

	mu        sync.Mutex
	requests  []request
	immune    map[int]bool // survives Terminate
	onRequest func(pid int)
}

func (k *fakeKiller) Terminate(pid int, force bool) error {
	k.mu.Lock()
	k.requests = append(k.requests, request{pid: pid, force: force})
	immune := k.immune[pid]
	cb := k.onRequest
	k.mu.Unlock()

	if cb != nil {
		cb(pid)
	}
	if !immune {
		k.table.remove(pid)
	}
	return nil
}

func (k *fakeKiller) targeted() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []int
	for _, r := range k.requests {
		out = append(out, r.pid)
	}
	return out
}

// fullKiller adds every optional capability.
type fullKiller struct {
	*fakeKiller
	groups  map[int]int
	swept   [][]int
	removed []int
	killed  []int
}

func (k *fullKiller) Sweep(pids []int) error {
	k.swept = append(k.swept, slices.Clone(pids))
	return nil
}

func (k *fullKiller) Remove(rec lib.ProcessRecord) error {
	k.removed = append(k.removed, rec.PID)
	return nil
}

func (k *fullKiller) ProcessGroup(pid int) (int, error) {
	return k.groups[pid], nil
}

func (k *fullKiller) KillGroup(pgid int) error {
	k.killed = append(k.killed, pgid)
	for pid, g := range k.groups {
		if g == pgid {
			k.table.remove(pid)
		}
	}
	return nil
}

func newTestReaper(table *fakeTable, killer Killer, opts ...Option) *Reaper {
	opts = append([]Option{WithName(exeName), WithParentPID(parentPID), WithWaits(time.Millisecond, time.Millisecond)}, opts...)
	return New(table, killer, opts...)
}

func TestReap_NothingToDo(t *testing.T) {
	table := newFakeTable(
		lib.ProcessRecord{PID: 1, Name: "init"},
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: 77, Name: "bash"},
	)
	killer := &fakeKiller{table: table}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	assert.Equal(t, 0, report.Found)
	assert.Equal(t, 0, report.Eliminated)
	assert.Empty(t, report.Remaining)
	assert.Empty(t, report.Phases)
	assert.Empty(t, killer.targeted())
}

func TestReap_GracefulSuffices(t *testing.T) {
	table := newFakeTable(
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: 600, ParentPID: 1, Name: exeName, State: lib.ProcessStateSleeping},
		lib.ProcessRecord{PID: 601, ParentPID: 1, Name: exeName, State: lib.ProcessStateRunning},
	)
	killer := &fakeKiller{table: table}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 2, report.Eliminated)
	assert.Empty(t, report.Remaining)
	require.Len(t, report.Phases, 2)
	assert.Equal(t, PhaseParentRelease, report.Phases[0].Phase)
	assert.Empty(t, report.Phases[0].Requested)
	assert.Equal(t, PhaseGraceful, report.Phases[1].Phase)
	assert.Equal(t, []int{600, 601}, report.Phases[1].Requested)

	killer.mu.Lock()
	defer killer.mu.Unlock()
	for _, r := range killer.requests {
		assert.False(t, r.force)
	}
}

func TestReap_ParentReleaseForStuckInstances(t *testing.T) {
	table := newFakeTable(
		lib.ProcessRecord{PID: 1, Name: "launchd"},
		lib.ProcessRecord{PID: parentPID, Name: "zsh"},
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: 300, ParentPID: 1, Name: "bash"},
		lib.ProcessRecord{PID: 301, ParentPID: 300, Name: exeName, State: lib.ProcessStateZombie},
		lib.ProcessRecord{PID: 302, ParentPID: 1, Name: exeName, State: lib.ProcessStateUninterruptibleExit},
		lib.ProcessRecord{PID: 303, ParentPID: parentPID, Name: exeName, State: lib.ProcessStateZombie},
		lib.ProcessRecord{PID: 304, ParentPID: selfPID, Name: exeName, State: lib.ProcessStateZombie},
	)
	killer := &fakeKiller{table: table}
	// a zombie disappears once its parent is gone
	killer.onRequest = func(pid int) {
		if pid == 300 {
			table.remove(301)
		}
	}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	require.NotEmpty(t, report.Phases)
	assert.Equal(t, []int{300}, report.Phases[0].Requested)
	assert.Equal(t, 4, report.Found)

	targeted := killer.targeted()
	assert.NotContains(t, targeted, 1)
	assert.NotContains(t, targeted, selfPID)
	assert.NotContains(t, targeted, parentPID)
	assert.False(t, table.has(301))
}

func TestReap_EscalatesThroughAllPhases(t *testing.T) {
	const stubborn = 700
	table := newFakeTable(
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: stubborn, ParentPID: 1, Name: exeName, State: lib.ProcessStateUninterruptibleExit},
	)
	base := &fakeKiller{table: table, immune: map[int]bool{stubborn: true}}
	killer := &fullKiller{
		fakeKiller: base,
		groups:     map[int]int{selfPID: parentPID, stubborn: stubborn},
	}

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	report := newTestReaper(table, killer, WithMetrics(metrics)).Reap(context.Background(), selfPID)

	var phases []Phase
	for _, p := range report.Phases {
		phases = append(phases, p.Phase)
		assert.False(t, p.Skipped, p.Phase.String())
	}
	assert.Equal(t, []Phase{PhaseParentRelease, PhaseGraceful, PhaseForceful, PhaseSweep, PhaseServiceManager, PhaseProcessGroup}, phases)

	assert.Equal(t, [][]int{{stubborn}}, killer.swept)
	assert.Equal(t, []int{stubborn}, killer.removed)
	assert.Equal(t, []int{stubborn}, killer.killed)

	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Eliminated)
	assert.Empty(t, report.Remaining)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Found))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Eliminated))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Remaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("forceful")))
}

func TestReap_SurvivorIsReportedNotFatal(t *testing.T) {
	const stubborn = 800
	table := newFakeTable(
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: stubborn, ParentPID: 1, Name: exeName, State: lib.ProcessStateUninterruptibleExit},
	)
	killer := &fakeKiller{table: table, immune: map[int]bool{stubborn: true}}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 0, report.Eliminated)
	require.Len(t, report.Remaining, 1)
	assert.Equal(t, stubborn, report.Remaining[0].PID)
	assert.Equal(t, lib.ProcessStateUninterruptibleExit, report.Remaining[0].State)

	skipped := map[Phase]bool{}
	for _, p := range report.Phases {
		skipped[p.Phase] = p.Skipped
	}
	assert.True(t, skipped[PhaseSweep])
	assert.True(t, skipped[PhaseServiceManager])
	assert.True(t, skipped[PhaseProcessGroup])
}

func TestReap_NeverKillsOwnGroup(t *testing.T) {
	const sibling = 900
	table := newFakeTable(
		lib.ProcessRecord{PID: selfPID, ParentPID: parentPID, Name: exeName},
		lib.ProcessRecord{PID: sibling, ParentPID: 1, Name: exeName},
	)
	base := &fakeKiller{table: table, immune: map[int]bool{sibling: true}}
	killer := &fullKiller{
		fakeKiller: base,
		groups:     map[int]int{selfPID: 450, sibling: 450},
	}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	assert.Empty(t, killer.killed)
	require.Len(t, report.Remaining, 1)
	for _, swept := range killer.swept {
		assert.NotContains(t, swept, selfPID)
	}
}

func TestReap_SelfAndProtectedNeverTargeted(t *testing.T) {
	// Every process carries the executable name, including PID 1 and self.
	table := newFakeTable(
		lib.ProcessRecord{PID: 1, ParentPID: 0, Name: exeName, State: lib.ProcessStateZombie},
		lib.ProcessRecord{PID: selfPID, ParentPID: 1, Name: exeName, State: lib.ProcessStateZombie},
		lib.ProcessRecord{PID: 42, ParentPID: selfPID, Name: exeName, State: lib.ProcessStateZombie},
	)
	base := &fakeKiller{table: table, immune: map[int]bool{42: true}}
	killer := &fullKiller{fakeKiller: base, groups: map[int]int{selfPID: selfPID, 42: selfPID}}

	report := newTestReaper(table, killer, WithParentPID(1)).Reap(context.Background(), selfPID)

	for _, pid := range killer.targeted() {
		assert.NotEqual(t, 1, pid)
		assert.NotEqual(t, selfPID, pid)
	}
	for _, swept := range killer.swept {
		assert.NotContains(t, swept, 1)
		assert.NotContains(t, swept, selfPID)
	}
	assert.Empty(t, killer.killed)
	assert.Equal(t, 1, report.Found)
}

func TestReap_ScanErrorIsEmpty(t *testing.T) {
	table := newFakeTable(lib.ProcessRecord{PID: 600, Name: exeName})
	table.err = &lib.ScanError{Op: "list", Err: assert.AnError}
	killer := &fakeKiller{table: table}

	report := newTestReaper(table, killer).Reap(context.Background(), selfPID)

	assert.Equal(t, 0, report.Found)
	assert.Empty(t, killer.targeted())
}

func TestReap_ContextCancelStopsEscalation(t *testing.T) {
	table := newFakeTable(lib.ProcessRecord{PID: 600, Name: exeName})
	killer := &fakeKiller{table: table, immune: map[int]bool{600: true}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestReaper(table, killer).Reap(ctx, selfPID)

	assert.Empty(t, report.Phases)
	assert.Len(t, report.Remaining, 1)
}

func TestProtected(t *testing.T) {
	assert.True(t, Protected(lib.ProcessRecord{PID: 1, Name: "anything"}))
	assert.True(t, Protected(lib.ProcessRecord{PID: 0}))
	assert.True(t, Protected(lib.ProcessRecord{PID: 99, Name: "systemd"}))
	assert.True(t, Protected(lib.ProcessRecord{PID: 99, Name: "svchost.exe"}))
	assert.False(t, Protected(lib.ProcessRecord{PID: 99, Name: exeName}))
}
