//go:build linux

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// Runs only as root with cgroup v2 mounted
func TestCgroup(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("Skipping: not running as root")
	}
	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err != nil {
		t.Skip("Skipping: cgroup v2 not mounted")
	}

	r := NewRunner(nil)
	id := lib.NewID()
	p, err := r.Start(id, Spec{Path: "sh", Args: []string{"-c", "sleep 60"}})
	require.NoError(t, err)

	cgDir := filepath.Join(cgroupRoot, id)
	procsData, err := os.ReadFile(filepath.Join(cgDir, "cgroup.procs"))
	require.NoError(t, err)

	// Check that pid was attached to cgroup
	assert.Equal(t, fmt.Sprint(p.PID()), strings.TrimSpace(string(procsData)))

	if controllerEnabled(cgroupRoot, "cpu") {
		cpuWeight, err := os.ReadFile(filepath.Join(cgDir, "cpu.weight"))
		require.NoError(t, err)
		assert.Equal(t, "100", strings.TrimSpace(string(cpuWeight)))
	}

	forced, err := p.Terminate(TerminateOptions{Polls: 1, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, forced)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(cgDir)
		return os.IsNotExist(err)
	}, 2*time.Second, 20*time.Millisecond)
}
