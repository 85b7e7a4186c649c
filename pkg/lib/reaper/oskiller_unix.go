//go:build unix

package reaper

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// sweepTimeout bounds one run of the kill utility.
const sweepTimeout = 5 * time.Second

// OSKiller signals real processes.
type OSKiller struct{}

func NewOSKiller() *OSKiller {
	return &OSKiller{}
}

func (*OSKiller) Terminate(pid int, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	return unix.Kill(pid, sig)
}

func (*OSKiller) ProcessGroup(pid int) (int, error) {
	return unix.Getpgid(pid)
}

func (*OSKiller) KillGroup(pgid int) error {
	if pgid <= 1 {
		return fmt.Errorf("refusing to kill process group %d", pgid)
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}

// Sweep runs "kill -KILL pid..." once for the whole batch.
func (*OSKiller) Sweep(pids []int) error {
	args := []string{"-KILL"}
	for _, pid := range pids {
		if pid <= 1 {
			continue
		}
		args = append(args, strconv.Itoa(pid))
	}
	if len(args) == 1 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "kill", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("kill %v: %w: %s", args, err, out)
	}
	return nil
}
