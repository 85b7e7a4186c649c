//go:build darwin

package procdir

import (
	"iter"

	"golang.org/x/sys/unix"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// From <sys/proc.h>.
const (
	sRun   = 2
	sSleep = 3
	sZomb  = 5
	pWExit = 0x2000
)

type sysctlDirectory struct{}

// New returns the directory of the running system.
func New() Directory {
	return sysctlDirectory{}
}

func (sysctlDirectory) List() (iter.Seq[lib.ProcessRecord], error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil, &lib.ScanError{Op: "sysctl kern.proc.all", Err: err}
	}

	return once(func(yield func(lib.ProcessRecord) bool) {
		for i := range procs {
			kp := &procs[i]
			if kp.Proc.P_pid <= 0 {
				continue
			}
			rec := lib.ProcessRecord{
				PID:       int(kp.Proc.P_pid),
				ParentPID: int(kp.Eproc.Ppid),
				Name:      unix.ByteSliceToString(kp.Proc.P_comm[:]),
				State:     darwinState(kp.Proc.P_stat, kp.Proc.P_flag),
			}
			if !yield(rec) {
				return
			}
		}
	}), nil
}

func darwinState(stat int8, flag int32) lib.ProcessState {
	switch {
	case stat == sZomb:
		return lib.ProcessStateZombie
	case flag&pWExit != 0:
		return lib.ProcessStateUninterruptibleExit
	case stat == sRun:
		return lib.ProcessStateRunning
	case stat == sSleep:
		return lib.ProcessStateSleeping
	default:
		return lib.ProcessStateUnknown
	}
}
