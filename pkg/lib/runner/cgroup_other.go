//go:build !linux

package runner

func killCgroup(id string) (bool, error) {
	return false, nil
}

func cleanupCgroup(id string) error {
	return nil
}
