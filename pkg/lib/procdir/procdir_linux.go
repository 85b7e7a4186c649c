//go:build linux

package procdir

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// pfExiting is the kernel PF_EXITING task flag.
const pfExiting = 0x4

// commLen is the longest name the kernel keeps in comm (TASK_COMM_LEN - 1).
const commLen = 15

type procFSDirectory struct {
	mountPoint string
}

// New returns the directory of the running system.
func New() Directory {
	return NewFromProcFS(procfs.DefaultMountPoint)
}

// NewFromProcFS returns a directory reading the proc filesystem mounted at
// mountPoint.
func NewFromProcFS(mountPoint string) Directory {
	return &procFSDirectory{mountPoint: mountPoint}
}

func (d *procFSDirectory) List() (iter.Seq[lib.ProcessRecord], error) {
	fs, err := procfs.NewFS(d.mountPoint)
	if err != nil {
		return nil, &lib.ScanError{Op: "open " + d.mountPoint, Err: err}
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, &lib.ScanError{Op: "list", Err: err}
	}

	return once(func(yield func(lib.ProcessRecord) bool) {
		for _, p := range procs {
			stat, err := p.Stat()
			if err != nil {
				// exited since the directory was read
				continue
			}
			rec := lib.ProcessRecord{
				PID:       stat.PID,
				ParentPID: stat.PPID,
				Name:      processName(p, stat.Comm),
				State:     linuxState(stat.State, stat.Flags),
			}
			if !yield(rec) {
				return
			}
		}
	}), nil
}

// processName recovers the full executable name when comm was truncated.
func processName(p procfs.Proc, comm string) string {
	if len(comm) < commLen {
		return comm
	}
	if exe, err := p.Executable(); err == nil && exe != "" {
		if base := filepath.Base(exe); strings.HasPrefix(base, comm) {
			return base
		}
	}
	if args, err := p.CmdLine(); err == nil && len(args) > 0 {
		if base := filepath.Base(args[0]); strings.HasPrefix(base, comm) {
			return base
		}
	}
	return comm
}

func linuxState(state string, flags uint) lib.ProcessState {
	switch state {
	case "R":
		return lib.ProcessStateRunning
	case "S", "I":
		return lib.ProcessStateSleeping
	case "Z", "X":
		return lib.ProcessStateZombie
	case "D":
		if flags&pfExiting != 0 {
			return lib.ProcessStateUninterruptibleExit
		}
		return lib.ProcessStateSleeping
	default:
		return lib.ProcessStateUnknown
	}
}
