//go:build !linux && !darwin

package procdir

import (
	"errors"
	"iter"
	"runtime"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

type unsupportedDirectory struct{}

// New returns a directory whose scans always fail on this platform.
func New() Directory {
	return unsupportedDirectory{}
}

func (unsupportedDirectory) List() (iter.Seq[lib.ProcessRecord], error) {
	return nil, &lib.ScanError{Op: "list on " + runtime.GOOS, Err: errors.ErrUnsupported}
}
