//go:build windows

package reaper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

const sweepTimeout = 5 * time.Second

// OSKiller terminates real processes. Windows has no graceful signal for
// arbitrary processes, so both modes kill.
type OSKiller struct{}

func NewOSKiller() *OSKiller {
	return &OSKiller{}
}

func (*OSKiller) Terminate(pid int, force bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Sweep runs "taskkill /F /PID pid..." once for the whole batch.
func (*OSKiller) Sweep(pids []int) error {
	args := []string{"/F"}
	for _, pid := range pids {
		if pid <= 4 {
			continue
		}
		args = append(args, "/PID", strconv.Itoa(pid))
	}
	if len(args) == 1 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "taskkill", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill %v: %w: %s", args, err, out)
	}
	return nil
}
