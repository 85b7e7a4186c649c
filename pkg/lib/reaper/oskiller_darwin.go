//go:build darwin

package reaper

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// Remove asks launchd to drop a job labelled like the process. Instances
// started from a terminal have no such job and the call fails harmlessly.
func (*OSKiller) Remove(rec lib.ProcessRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "launchctl", "remove", rec.Name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl remove %s: %w: %s", rec.Name, err, out)
	}
	return nil
}
