package lib

import "fmt"

// ProcessState is the scheduler state of a process as reported by the OS
// process table. Some states are informational only and vary per platform.
type ProcessState int

const (
	ProcessStateUnknown ProcessState = iota
	ProcessStateRunning
	ProcessStateSleeping
	ProcessStateZombie
	// ProcessStateUninterruptibleExit is a process blocked in the kernel while
	// exiting (macOS "UE", Linux "D" with PF_EXITING). It usually ignores signals.
	ProcessStateUninterruptibleExit
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "Running"
	case ProcessStateSleeping:
		return "Sleeping"
	case ProcessStateZombie:
		return "Zombie"
	case ProcessStateUninterruptibleExit:
		return "UninterruptibleExit"
	default:
		return "Unknown"
	}
}

// Stuck reports whether the process is in a state where plain signals are
// unlikely to remove it from the process table.
func (s ProcessState) Stuck() bool {
	return s == ProcessStateZombie || s == ProcessStateUninterruptibleExit
}

// ProcessRecord is a snapshot of one OS process taken during a single scan.
type ProcessRecord struct {
	PID       int
	ParentPID int
	Name      string
	State     ProcessState
}

func (r ProcessRecord) String() string {
	return fmt.Sprintf("%s[%d] ppid=%d state=%s", r.Name, r.PID, r.ParentPID, r.State)
}

// RunState is the lifecycle state of the provisioning supervisor.
type RunState int

const (
	RunStateIdle RunState = iota
	RunStateStarting
	RunStateRunning
)

func (s RunState) String() string {
	switch s {
	case RunStateStarting:
		return "Starting"
	case RunStateRunning:
		return "Running"
	default:
		return "Idle"
	}
}

// EventKind tags an OutputEvent.
type EventKind int

const (
	// EventLine is one line of the child's stdout.
	EventLine EventKind = iota
	// EventWarning is one line of the child's stderr.
	EventWarning
	// EventCompleted ends a run whose child was started.
	EventCompleted
	// EventFailed ends a run that broke down outside the child's control.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "Line"
	case EventWarning:
		return "Warning"
	case EventCompleted:
		return "Completed"
	case EventFailed:
		return "Failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// OutputEvent is sent from a run's worker to the consumer. Exactly one
// terminal event (Completed or Failed) ends every run.
type OutputEvent struct {
	Kind EventKind
	// Text carries the line for Line/Warning and the reason for Failed.
	Text string
	// Success and ExitCode are set for Completed. ExitCode is nil when the
	// child was killed by a signal or cancelled.
	Success  bool
	ExitCode *int
}

func LineEvent(text string) OutputEvent {
	return OutputEvent{Kind: EventLine, Text: text}
}

func WarningEvent(text string) OutputEvent {
	return OutputEvent{Kind: EventWarning, Text: text}
}

// CompletedEvent builds the terminal event for an exited child. A nil code
// means the child did not exit on its own.
func CompletedEvent(code *int) OutputEvent {
	ev := OutputEvent{Kind: EventCompleted}
	if code != nil {
		c := *code
		ev.ExitCode = &c
		ev.Success = c == 0
	}
	return ev
}

func FailedEvent(reason string) OutputEvent {
	return OutputEvent{Kind: EventFailed, Text: reason}
}

// Terminal reports whether the event ends a run.
func (e OutputEvent) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}

func (e OutputEvent) String() string {
	switch e.Kind {
	case EventCompleted:
		if e.ExitCode == nil {
			return fmt.Sprintf("Completed(success=%t)", e.Success)
		}
		return fmt.Sprintf("Completed(success=%t, exit_code=%d)", e.Success, *e.ExitCode)
	default:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Text)
	}
}
