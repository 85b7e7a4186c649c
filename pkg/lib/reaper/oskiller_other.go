//go:build !unix && !windows

package reaper

import "errors"

type OSKiller struct{}

func NewOSKiller() *OSKiller {
	return &OSKiller{}
}

func (*OSKiller) Terminate(pid int, force bool) error {
	return errors.ErrUnsupported
}
