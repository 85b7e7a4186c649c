package runner

import (
	"os"
	"syscall"
)

// SysProcAttr carries the platform attributes for a spawn plus the cgroup
// directory handle that must stay open until the child has started.
type SysProcAttr struct {
	File   *os.File
	Raw    *syscall.SysProcAttr
	cgroup bool
}

func (a *SysProcAttr) close() {
	if a != nil && a.File != nil {
		_ = a.File.Close()
	}
}
