//go:build windows

package runner

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func (runner *Runner) sysProcAttr(id string) (*SysProcAttr, error) {
	return &SysProcAttr{
		Raw: &syscall.SysProcAttr{
			CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
		}}, nil
}
