//go:build unix

package signalgate

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errIgnored = errors.New("signal is ignored by this process")

func shutdownSignals() []os.Signal {
	return []os.Signal{unix.SIGINT, unix.SIGTERM}
}
