package main

import (
	"sync"
	"time"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/eventlog"
)

// journal keeps every event of one run so that any number of clients can
// replay it from the start. Only the pump appends.
type journal struct {
	id     string
	owner  string
	host   string
	start  time.Time
	events *eventlog.Log[*apiv1.Event]

	// seq is owned by the pump.
	seq int64

	mu     sync.RWMutex
	pid    int
	end    *time.Time
	result *apiv1.Event
}

func newJournal(id, owner, host string, pid int) *journal {
	return &journal{
		id:     id,
		owner:  owner,
		host:   host,
		start:  time.Now(),
		pid:    pid,
		events: eventlog.New[*apiv1.Event](),
	}
}

// append records ev and reports whether it finished the run.
func (j *journal) append(ev lib.OutputEvent) bool {
	j.seq++
	now := time.Now()
	out := apiv1.NewEvent(j.id, j.seq, now, ev)
	j.events.Append(out)
	if !ev.Terminal() {
		return false
	}

	j.mu.Lock()
	j.pid = 0
	j.end = &now
	j.result = out
	j.mu.Unlock()
	j.events.Close()
	return true
}

func (j *journal) finished() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result != nil
}

func (j *journal) status() *apiv1.RunStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	st := &apiv1.RunStatus{
		RunID:     j.id,
		State:     apiv1.RunStateRunning,
		PID:       j.pid,
		Host:      j.host,
		StartTime: j.start,
	}
	if j.result != nil {
		st.State = apiv1.RunStateFinished
		end := *j.end
		st.EndTime = &end
		st.Result = j.result
	}
	return st
}
