//go:build unix && !linux

package runner

import (
	"syscall"
)

func (runner *Runner) sysProcAttr(id string) (*SysProcAttr, error) {
	return &SysProcAttr{
		Raw: &syscall.SysProcAttr{
			// New process group to manage children as a unit
			Setpgid: true,
		}}, nil
}
