package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	// Code is the exit code. It is nil when the process was killed by a
	// signal or could not be waited for.
	Code *int
	// Signal names the signal that killed the process, if any.
	Signal string
	// Err is set when waiting for the process failed for a reason other than
	// a non-zero exit.
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

// Signaled reports whether the process was killed by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != ""
}

// Process is a spawned child. Its stdout and stderr are read through the
// pipes returned by Stdout and Stderr.
type Process struct {
	id     string
	pid    int
	cmd    *exec.Cmd
	logger *slog.Logger

	stdout *os.File
	stderr *os.File

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	status ExitStatus
}

// Start spawns spec in a new process group. Spawn failures are returned as
// *lib.SpawnError and leave nothing running.
func (runner *Runner) Start(id string, spec Spec) (*Process, error) {
	if spec.Path == "" {
		return nil, &lib.SpawnError{Path: spec.Path, Err: errors.New("command is required")}
	}
	logger := runner.logger.With("run_id", id)

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	attr, err := runner.sysProcAttr(id)
	if err != nil {
		return nil, &lib.SpawnError{Path: spec.Path, Err: err}
	}
	cmd.SysProcAttr = attr.Raw
	defer attr.close()

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		runner.cleanup(id, attr)
		return nil, &lib.SpawnError{Path: spec.Path, Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		runner.cleanup(id, attr)
		return nil, &lib.SpawnError{Path: spec.Path, Err: err}
	}

	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	logger.Debug("starting process", "path", spec.Path, "args", spec.Args, "dir", spec.Dir)
	startErr := cmd.Start()

	// The child holds its own copies of the write ends.
	_ = stdoutW.Close()
	_ = stderrW.Close()

	if startErr != nil {
		logger.Debug("failed to start process", "error", startErr)
		_ = stdoutR.Close()
		_ = stderrR.Close()
		runner.cleanup(id, attr)
		return nil, &lib.SpawnError{Path: spec.Path, Err: startErr}
	}

	p := &Process{
		id:     id,
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		logger: logger.With("pid", cmd.Process.Pid),
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
		status: ExitStatus{StartTime: time.Now()},
	}

	// Waiter
	go func() {
		err := cmd.Wait()

		st := exitStatus(cmd, err)
		if err != nil {
			p.logger.Debug("process finished", "error", err)
		} else {
			p.logger.Debug("process finished without error")
		}

		p.mu.Lock()
		st.StartTime = p.status.StartTime
		st.EndTime = time.Now()
		p.status = st
		p.mu.Unlock()

		close(p.done)

		// Cleanup platform-specific resources
		_ = cleanupCgroup(id)
	}()

	return p, nil
}

func (runner *Runner) cleanup(id string, attr *SysProcAttr) {
	if attr.cgroup {
		_ = cleanupCgroup(id)
	}
}

func exitStatus(cmd *exec.Cmd, err error) ExitStatus {
	var st ExitStatus
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			st.Err = err
			return st
		}
	}
	if cmd.ProcessState == nil {
		st.Err = fmt.Errorf("no process state: %w", err)
		return st
	}
	if sig := signalOf(cmd.ProcessState); sig != "" {
		st.Signal = sig
		return st
	}
	code := cmd.ProcessState.ExitCode()
	if code < 0 {
		st.Err = fmt.Errorf("unknown exit status: %s", cmd.ProcessState)
		return st
	}
	st.Code = &code
	return st
}

func (p *Process) ID() string { return p.id }

func (p *Process) PID() int { return p.pid }

// Stdout returns the read end of the child's stdout.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the read end of the child's stderr.
func (p *Process) Stderr() io.Reader { return p.stderr }

// Done is closed once the child has exited and been waited for.
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Status returns the exit status. The second value is false while the child
// is still running.
func (p *Process) Status() (ExitStatus, bool) {
	if !p.Exited() {
		return ExitStatus{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.status
	if st.Code != nil {
		st.Code = lib.IntPtr(*st.Code)
	}
	return st, true
}

// Wait blocks until the child exits or the timeout elapses.
func (p *Process) Wait(timeout time.Duration) (ExitStatus, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		st, _ := p.Status()
		return st, nil
	case <-timer.C:
		return ExitStatus{}, lib.ErrTimedOut
	}
}

// ClosePipes closes the read ends of the output pipes. Blocked readers return
// with an error. Safe to call more than once.
func (p *Process) ClosePipes() {
	p.closeOnce.Do(func() {
		_ = p.stdout.Close()
		_ = p.stderr.Close()
	})
}

// Signal sends the graceful (force=false) or kill (force=true) signal to the
// child's whole process group.
func (p *Process) Signal(force bool) error {
	if p.Exited() {
		return nil
	}
	return signalGroup(p.pid, force)
}

// Terminate stops the child: graceful signal to the group, liveness polled
// opts.Polls times every opts.Interval, then a kill of the group and its
// cgroup, waiting at most opts.ForceWait. It reports whether the kill was
// needed. lib.ErrTimedOut means the child survived the kill. Group members
// that outlive the child are killed as well.
func (p *Process) Terminate(opts TerminateOptions) (bool, error) {
	opts = opts.withDefaults()
	if p.Exited() {
		p.sweep()
		return false, nil
	}

	p.logger.Debug("terminating process group")
	if err := p.Signal(false); err != nil {
		p.logger.Debug("graceful signal failed", "error", err)
	}

	for i := 0; i < opts.Polls; i++ {
		select {
		case <-p.done:
			p.sweep()
			return false, nil
		case <-time.After(opts.Interval):
		}
	}

	p.logger.Debug("process group still alive, killing")
	if ok, _ := killCgroup(p.id); !ok {
		if err := p.Signal(true); err != nil {
			p.logger.Debug("kill signal failed", "error", err)
		}
	}

	if _, err := p.Wait(opts.ForceWait); err != nil {
		return true, err
	}
	p.sweep()
	return true, nil
}

// KillGroup kills every process left in the child's group and cgroup,
// including ones that outlived the child. It is a no-op when nothing is left.
func (p *Process) KillGroup() error {
	cg, cgErr := killCgroup(p.id)
	err := killStragglers(p.pid)
	if cg {
		// rmdir only succeeds once the killed members are gone.
		for i := 0; i < 20; i++ {
			if err := cleanupCgroup(p.id); err == nil || errors.Is(err, os.ErrNotExist) {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	return errors.Join(cgErr, err)
}

func (p *Process) sweep() {
	if err := p.KillGroup(); err != nil {
		p.logger.Debug("failed to kill leftover processes", "error", err)
	}
}
