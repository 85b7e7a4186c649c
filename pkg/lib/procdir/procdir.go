// Package procdir enumerates OS processes. Every List call is a fresh scan of
// the process table; nothing is cached.
package procdir

import (
	"iter"
	"sync/atomic"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// Directory is a read-only view of the OS process table.
type Directory interface {
	// List starts one scan. The returned sequence is lazy, finite and can be
	// ranged over only once. A *lib.ScanError means the OS refused to
	// enumerate processes; callers treat it as an empty scan.
	List() (iter.Seq[lib.ProcessRecord], error)
}

// FindByName returns the processes of a fresh scan whose executable name is
// exactly name.
func FindByName(dir Directory, name string) (iter.Seq[lib.ProcessRecord], error) {
	all, err := dir.List()
	if err != nil {
		return nil, err
	}
	return func(yield func(lib.ProcessRecord) bool) {
		for rec := range all {
			if rec.Name != name {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}, nil
}

// Lookup returns the record for pid from a fresh scan.
func Lookup(dir Directory, pid int) (lib.ProcessRecord, bool, error) {
	all, err := dir.List()
	if err != nil {
		return lib.ProcessRecord{}, false, err
	}
	for rec := range all {
		if rec.PID == pid {
			return rec, true, nil
		}
	}
	return lib.ProcessRecord{}, false, nil
}

// once makes seq single-use: ranging over it a second time yields nothing.
func once(seq iter.Seq[lib.ProcessRecord]) iter.Seq[lib.ProcessRecord] {
	var used atomic.Bool
	return func(yield func(lib.ProcessRecord) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		seq(yield)
	}
}
