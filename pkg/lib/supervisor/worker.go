package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/runner"
)

const (
	// stderrTailLines is how much stderr is kept to explain a failed wait.
	stderrTailLines = 20
	// maxLineBytes caps a buffered line; longer output is split.
	maxLineBytes = 64 * 1024
)

type streamLine struct {
	kind lib.EventKind
	text string
}

type worker struct {
	s   *Supervisor
	run *run

	lines chan streamLine
	stop  chan struct{}
	once  sync.Once

	tail []string
}

func (s *Supervisor) work(r *run) {
	w := &worker{
		s:     s,
		run:   r,
		lines: make(chan streamLine, 64),
		stop:  make(chan struct{}),
	}
	w.startReaders()

	ev, result := w.supervise()
	s.finish(r, ev, result)
}

func (w *worker) startReaders() {
	lines := w.lines
	var g errgroup.Group
	g.Go(func() error { return w.read(w.run.proc.Stdout(), lib.EventLine, lines) })
	g.Go(func() error { return w.read(w.run.proc.Stderr(), lib.EventWarning, lines) })

	go func() {
		if err := g.Wait(); err != nil {
			w.run.logger.Debug("output reader stopped", "error", err)
		}
		close(lines)
	}()
}

// read splits src into lines of at most maxLineBytes. A final fragment
// without a newline is still delivered.
func (w *worker) read(src io.Reader, kind lib.EventKind, out chan<- streamLine) error {
	br := bufio.NewReaderSize(src, maxLineBytes)
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			err = nil
		}
		if len(chunk) > 0 {
			text := strings.TrimSuffix(strings.TrimSuffix(string(chunk), "\n"), "\r")
			select {
			case out <- streamLine{kind: kind, text: text}:
			case <-w.stop:
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// release closes the pipes and unblocks the readers.
func (w *worker) release() {
	w.once.Do(func() {
		w.run.proc.ClosePipes()
		close(w.stop)
	})
}

func (w *worker) supervise() (ev lib.OutputEvent, result string) {
	defer func() {
		if p := recover(); p != nil {
			w.run.logger.Error("provisioning worker panicked", "panic", p)
			if _, err := w.run.proc.Terminate(w.terminateOptions()); err != nil {
				w.run.logger.Warn("child did not exit after kill", "error", err)
			}
			w.release()
			ev, result = lib.FailedEvent(fmt.Sprintf("internal error: %v", p)), resultError
		}
	}()

	lines := w.lines
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				// Both pipes hit EOF; the exit is close behind.
				lines = nil
				continue
			}
			w.forward(l)
			if w.cancelRequested() {
				return w.cancel()
			}
		case <-w.run.cancel:
			return w.cancel()
		case <-w.s.shutdown.Done():
			return w.cancel()
		case <-w.run.proc.Done():
			return w.exited()
		}
	}
}

func (w *worker) cancelRequested() bool {
	select {
	case <-w.run.cancel:
		return true
	case <-w.s.shutdown.Done():
		return true
	default:
		return false
	}
}

func (w *worker) terminateOptions() runner.TerminateOptions {
	t := w.s.timeouts
	return runner.TerminateOptions{
		Polls:     t.TerminatePolls,
		Interval:  t.PollInterval,
		ForceWait: t.ForceWait,
	}
}

func (w *worker) cancel() (lib.OutputEvent, string) {
	forced, err := w.run.proc.Terminate(w.terminateOptions())
	if err != nil {
		w.run.logger.Warn("child did not exit after kill", "error", err)
	} else {
		w.run.logger.Info("provisioning run cancelled", "forced", forced)
	}
	w.run.pid.Store(0)

	w.drain()
	w.release()
	return lib.CompletedEvent(nil), resultCancelled
}

func (w *worker) exited() (lib.OutputEvent, string) {
	w.run.pid.Store(0)

	complete := w.drain()
	// Whatever is left in the group outlived the child.
	if err := w.run.proc.KillGroup(); err != nil {
		w.run.logger.Warn("failed to kill leftover processes", "error", err)
	}
	if !complete {
		w.drain()
	}
	w.release()

	st, _ := w.run.proc.Status()
	switch {
	case st.Err != nil:
		reason := "wait failed: " + st.Err.Error()
		if len(w.tail) > 0 {
			reason += "\n" + strings.Join(w.tail, "\n")
		}
		w.run.logger.Error("provisioning run failed", "error", st.Err)
		return lib.FailedEvent(reason), resultError
	case st.Signaled() || st.Code == nil:
		w.run.logger.Info("provisioning run killed", "signal", st.Signal)
		return lib.CompletedEvent(nil), resultFailure
	default:
		w.run.logger.Info("provisioning run exited", "exit_code", *st.Code)
		if *st.Code == 0 {
			return lib.CompletedEvent(st.Code), resultSuccess
		}
		return lib.CompletedEvent(st.Code), resultFailure
	}
}

// drain forwards buffered output until both streams end or DrainTimeout
// passes. It reports whether both streams ended.
func (w *worker) drain() bool {
	if w.lines == nil {
		return true
	}
	timer := time.NewTimer(w.s.timeouts.DrainTimeout)
	defer timer.Stop()
	for {
		select {
		case l, ok := <-w.lines:
			if !ok {
				w.lines = nil
				return true
			}
			w.forward(l)
		case <-timer.C:
			w.run.logger.Debug("output still open after drain timeout")
			return false
		}
	}
}

func (w *worker) forward(l streamLine) {
	stream := "stdout"
	if l.kind == lib.EventWarning {
		stream = "stderr"
		w.tail = append(w.tail, l.text)
		if len(w.tail) > stderrTailLines {
			w.tail = w.tail[len(w.tail)-stderrTailLines:]
		}
	}

	text := l.text
	if w.s.filter != nil {
		var keep bool
		if text, keep = w.s.filter(l.kind, text); !keep {
			return
		}
	}

	var ev lib.OutputEvent
	if l.kind == lib.EventWarning {
		ev = lib.WarningEvent(text)
	} else {
		ev = lib.LineEvent(text)
	}
	w.run.events.Append(ev)
	w.s.metrics.line(stream)
	w.s.notifier.Publish(struct{}{})
}

// finish publishes the terminal event and returns the supervisor to Idle.
// done is closed last so a joined run has nothing left to produce. Idle and
// done change together under mu, so Start never refuses a run once Idle is
// visible.
func (s *Supervisor) finish(r *run, ev lib.OutputEvent, result string) {
	r.events.Append(ev)
	r.events.Close()
	r.pid.Store(0)
	s.metrics.runFinished(result, time.Since(r.started))
	s.notifier.Publish(struct{}{})

	s.mu.Lock()
	s.state.Store(int32(lib.RunStateIdle))
	close(r.done)
	s.mu.Unlock()
}
