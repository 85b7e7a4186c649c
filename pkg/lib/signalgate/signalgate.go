// Package signalgate turns OS termination signals into a single process-wide
// shutdown flag.
package signalgate

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// ShutdownSignal is a flag that goes from unset to set exactly once and never
// resets. It is safe for concurrent use.
type ShutdownSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewShutdownSignal returns a flag that is only set programmatically.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load()
}

// Set raises the flag. Calls after the first have no effect.
func (s *ShutdownSignal) Set() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

// Done is closed once the flag is set.
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}

var installed atomic.Bool

// Install hooks the interrupt and terminate signals and returns the flag they
// set. It may be called once per process; later calls fail with
// lib.ErrAlreadyInstalled.
//
// Signals the process already ignores are left alone. They are reported in a
// *lib.RegistrationError returned together with a usable flag.
func Install() (*ShutdownSignal, error) {
	if !installed.CompareAndSwap(false, true) {
		return nil, lib.ErrAlreadyInstalled
	}
	return install(NewShutdownSignal(), shutdownSignals())
}

func install(s *ShutdownSignal, candidates []os.Signal) (*ShutdownSignal, error) {
	var hooked []os.Signal
	var skipped []string
	for _, sig := range candidates {
		if signal.Ignored(sig) {
			skipped = append(skipped, sig.String())
			continue
		}
		hooked = append(hooked, sig)
	}

	if len(hooked) > 0 {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, hooked...)
		go func() {
			<-ch
			s.Set()
			signal.Stop(ch)
		}()
	}

	if len(skipped) > 0 {
		return s, &lib.RegistrationError{Signals: skipped, Err: errIgnored}
	}
	return s, nil
}
