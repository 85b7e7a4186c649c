package reaper

import "github.com/organicnz/rustsible-gui/pkg/lib"

// Killer sends termination requests to single processes. Platform killers
// may also implement GroupKiller, Sweeper and ServiceManager; the reaper
// skips the phases whose capability is missing.
type Killer interface {
	// Terminate sends the graceful (force=false) or kill (force=true) request.
	Terminate(pid int, force bool) error
}

// GroupKiller resolves and kills process groups.
type GroupKiller interface {
	ProcessGroup(pid int) (int, error)
	KillGroup(pgid int) error
}

// Sweeper kills a batch of processes through the OS kill utility.
type Sweeper interface {
	Sweep(pids []int) error
}

// ServiceManager asks the session service manager to drop a process.
type ServiceManager interface {
	Remove(rec lib.ProcessRecord) error
}
