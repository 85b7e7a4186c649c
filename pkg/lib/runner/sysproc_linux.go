//go:build linux

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

const (
	cgroupRoot = "/sys/fs/cgroup/rustsible"
)

var (
	cgroupInitOnce sync.Once
	cgroupInitErr  error
)

// initCgroups prepares the cgroup root for spawned runs.
// It is safe to call multiple times; real work happens only once.
func initCgroups() error {
	cgroupInitOnce.Do(func() {
		cgroupInitErr = initCgroupsImpl()
	})
	return cgroupInitErr
}

func initCgroupsImpl() error {
	if err := os.MkdirAll(cgroupRoot, 0755); err != nil {
		return err
	}

	// Determine which controllers are available and already enabled on this cgroup
	available, err := readControllerSet(filepath.Join(cgroupRoot, "cgroup.controllers"))
	if err != nil {
		return err
	}
	enabled, err := readControllerSet(filepath.Join(cgroupRoot, "cgroup.subtree_control"))
	if err != nil {
		return err
	}

	desired := []string{"cpu", "io", "memory"}
	var toAdd []string
	for _, ctrl := range desired {
		if available[ctrl] && !enabled[ctrl] {
			toAdd = append(toAdd, "+"+ctrl)
		}
	}
	if len(toAdd) > 0 {
		if err := writeString(filepath.Join(cgroupRoot, "cgroup.subtree_control"), strings.Join(toAdd, " ")); err != nil {
			return err
		}
	}
	return nil
}

func readControllerSet(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, f := range strings.Fields(string(data)) {
		set[strings.TrimPrefix(f, "+")] = true
	}
	return set, nil
}

// sysProcAttr puts the child into its own process group and, when running
// as root with cgroup v2 available, into a per-run cgroup.
func (runner *Runner) sysProcAttr(id string) (*SysProcAttr, error) {
	plain := &SysProcAttr{
		Raw: &syscall.SysProcAttr{
			// New process group to manage children as a unit
			Setpgid: true,
		},
	}
	if os.Geteuid() != 0 {
		return plain, nil
	}

	if err := initCgroups(); err != nil {
		runner.logger.Debug("cgroups unavailable, using process group only", "error", err)
		return plain, nil
	}

	cgPath, err := runner.setupCgroupFor(id)
	if err != nil {
		return nil, err
	}

	cgroupDir, err := os.Open(cgPath)
	if err != nil {
		_ = os.Remove(cgPath)
		return nil, err
	}

	return &SysProcAttr{
		File: cgroupDir,
		Raw: &syscall.SysProcAttr{
			Setpgid:     true,
			UseCgroupFD: true,
			CgroupFD:    int(cgroupDir.Fd()),
		},
		cgroup: true,
	}, nil
}

// killCgroup kills every process in the run's cgroup. It reports false when
// the run has no cgroup.
func killCgroup(id string) (bool, error) {
	cgDir := filepath.Join(cgroupRoot, id)
	if _, err := os.Stat(cgDir); err != nil {
		return false, nil
	}
	err := writeString(filepath.Join(cgDir, "cgroup.kill"), "1")

	return err == nil, err
}

func cleanupCgroup(id string) error {
	cgDir := filepath.Join(cgroupRoot, id)
	return os.Remove(cgDir)
}

func (runner *Runner) setupCgroupFor(id string) (string, error) {
	processRoot := filepath.Join(cgroupRoot, id)
	if err := os.MkdirAll(processRoot, 0755); err != nil {
		return "", err
	}

	// Only write controller-specific files if controllers are enabled
	if controllerEnabled(cgroupRoot, "cpu") {
		if err := writeString(filepath.Join(processRoot, "cpu.weight"), "100"); err != nil {
			return "", err
		}
	}
	if controllerEnabled(cgroupRoot, "io") {
		if err := writeString(filepath.Join(processRoot, "io.weight"), "100"); err != nil {
			return "", err
		}
	}
	if runner.MemoryHigh > 0 && controllerEnabled(cgroupRoot, "memory") {
		if err := writeString(filepath.Join(processRoot, "memory.high"), fmt.Sprint(runner.MemoryHigh)); err != nil {
			return "", err
		}
	}

	return processRoot, nil
}

func controllerEnabled(cgPath, controller string) bool {
	enabled, err := readControllerSet(filepath.Join(cgPath, "cgroup.subtree_control"))
	if err != nil {
		return false
	}
	return enabled[controller]
}

func writeString(path, val string) error {
	return os.WriteFile(path, []byte(val), 0644)
}
