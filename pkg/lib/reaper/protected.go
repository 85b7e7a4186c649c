package reaper

import "github.com/organicnz/rustsible-gui/pkg/lib"

var protectedNames = map[string]struct{}{
	"launchd":      {},
	"systemd":      {},
	"init":         {},
	"kthreadd":     {},
	"kernel_task":  {},
	"wininit.exe":  {},
	"services.exe": {},
	"smss.exe":     {},
	"csrss.exe":    {},
	"svchost.exe":  {},
}

// Protected reports whether rec must never be signalled: PID 1 and below,
// and the init, service-manager and kernel processes of every platform.
func Protected(rec lib.ProcessRecord) bool {
	if rec.PID <= 1 {
		return true
	}
	_, ok := protectedNames[rec.Name]
	return ok
}
