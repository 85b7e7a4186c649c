package provisioning

import (
	"os"
	"path/filepath"
)

// FindRepoRoot walks up from the executable's directory to the first
// directory containing marker and falls back to the current directory.
func FindRepoRoot(marker string) (string, error) {
	if marker == "" {
		marker = DefaultPlaybook
	}
	if exe, err := os.Executable(); err == nil {
		if exe, err := filepath.EvalSymlinks(exe); err == nil {
			if dir, ok := findUp(filepath.Dir(exe), marker); ok {
				return dir, nil
			}
		}
	}
	return os.Getwd()
}

func findUp(dir, marker string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
