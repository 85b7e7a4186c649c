// Package v1 is the remote control API of the provisioning daemon: message
// types, the rustsible.v1.Provisioner service descriptor and its client.
package v1

import (
	"time"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
)

type RunState string

const (
	RunStateUnspecified RunState = ""
	RunStateRunning     RunState = "running"
	RunStateFinished    RunState = "finished"
)

type EventKind string

const (
	EventKindLine      EventKind = "line"
	EventKindWarning   EventKind = "warning"
	EventKindCompleted EventKind = "completed"
	EventKindFailed    EventKind = "failed"
)

type StartRequest struct {
	Settings provisioning.Settings `json:"settings"`
	// UseStored ignores Settings and runs with the daemon's settings file.
	UseStored bool `json:"use_stored,omitempty"`
}

type StartResponse struct {
	RunID  string     `json:"run_id"`
	Status *RunStatus `json:"status"`
}

type CancelRequest struct {
	RunID string `json:"run_id"`
}

type CancelResponse struct {
	Status *RunStatus `json:"status"`
}

type StatusRequest struct {
	RunID string `json:"run_id"`
}

type StatusResponse struct {
	Status *RunStatus `json:"status"`
}

type EventsRequest struct {
	RunID string `json:"run_id"`
}

type RunStatus struct {
	RunID string   `json:"run_id"`
	State RunState `json:"state"`
	// PID is zero once the child has exited.
	PID       int        `json:"pid,omitempty"`
	Host      string     `json:"host,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	// Result is the terminal event of a finished run.
	Result *Event `json:"result,omitempty"`
}

// Event is one output event of a run. Seq starts at 1 and has no gaps.
type Event struct {
	RunID    string    `json:"run_id"`
	Seq      int64     `json:"seq"`
	Kind     EventKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Success  bool      `json:"success,omitempty"`
	ExitCode *int32    `json:"exit_code,omitempty"`
	Time     time.Time `json:"time"`
}

func (e *Event) Terminal() bool {
	return e.Kind == EventKindCompleted || e.Kind == EventKindFailed
}

func NewEvent(runID string, seq int64, at time.Time, ev lib.OutputEvent) *Event {
	out := &Event{RunID: runID, Seq: seq, Text: ev.Text, Success: ev.Success, Time: at}
	switch ev.Kind {
	case lib.EventLine:
		out.Kind = EventKindLine
	case lib.EventWarning:
		out.Kind = EventKindWarning
	case lib.EventCompleted:
		out.Kind = EventKindCompleted
	case lib.EventFailed:
		out.Kind = EventKindFailed
	}
	if ev.ExitCode != nil {
		code := int32(*ev.ExitCode)
		out.ExitCode = &code
	}
	return out
}

// Output converts the event back to the library form.
func (e *Event) Output() lib.OutputEvent {
	switch e.Kind {
	case EventKindWarning:
		return lib.WarningEvent(e.Text)
	case EventKindCompleted:
		if e.ExitCode == nil {
			return lib.CompletedEvent(nil)
		}
		return lib.CompletedEvent(lib.IntPtr(int(*e.ExitCode)))
	case EventKindFailed:
		return lib.FailedEvent(e.Text)
	default:
		return lib.LineEvent(e.Text)
	}
}
