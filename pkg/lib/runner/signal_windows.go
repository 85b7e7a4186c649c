//go:build windows

package runner

import (
	"errors"
	"os"
)

// signalGroup has no graceful form on Windows; both modes kill the child.
func signalGroup(pid int, force bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	err = p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func signalOf(state *os.ProcessState) string {
	return ""
}

// killStragglers is a no-op: without a job object the pid of a reaped child
// may already belong to an unrelated process.
func killStragglers(pid int) error {
	return nil
}
