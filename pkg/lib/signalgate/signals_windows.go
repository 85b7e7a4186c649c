//go:build windows

package signalgate

import (
	"errors"
	"os"
	"syscall"
)

var errIgnored = errors.New("signal is ignored by this process")

// os.Interrupt covers Ctrl+C and Ctrl+Break; SIGTERM is delivered on console
// close, logoff and shutdown.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
