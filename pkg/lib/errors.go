package lib

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadySpawned is returned by Start while a run is still live.
	ErrAlreadySpawned = errors.New("a provisioning run is already active")
	// ErrAlreadyInstalled is returned when signal handlers are installed twice.
	ErrAlreadyInstalled = errors.New("signal gate already installed")
	// ErrTimedOut is returned when a bounded wait runs out of time.
	ErrTimedOut = errors.New("timed out")
	// ErrShuttingDown is returned by Start once shutdown has been requested.
	ErrShuttingDown = errors.New("shutdown in progress")
	// ErrInvalidConfig matches every *InvalidConfigError via errors.Is.
	ErrInvalidConfig = errors.New("invalid config")
)

// InvalidConfigError names the settings field that prevented a run.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// SpawnError means the external process could not be started at all.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ScanError means the OS refused to enumerate processes. Callers treat it as
// an empty scan.
type ScanError struct {
	Op  string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("process scan failed: %s: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// RegistrationError lists the OS signals that could not be hooked.
type RegistrationError struct {
	Signals []string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("signal registration failed for %s: %v", strings.Join(e.Signals, ", "), e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
