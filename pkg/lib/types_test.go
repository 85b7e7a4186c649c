package lib

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletedEvent_ExitCodeMapping(t *testing.T) {
	ok := CompletedEvent(IntPtr(0))
	assert.True(t, ok.Terminal())
	assert.True(t, ok.Success)
	require.NotNil(t, ok.ExitCode)
	assert.Equal(t, 0, *ok.ExitCode)

	failed := CompletedEvent(IntPtr(2))
	assert.False(t, failed.Success)
	require.NotNil(t, failed.ExitCode)
	assert.Equal(t, 2, *failed.ExitCode)

	killed := CompletedEvent(nil)
	assert.False(t, killed.Success)
	assert.Nil(t, killed.ExitCode)
	assert.Equal(t, "Completed(success=false)", killed.String())
}

func TestCompletedEvent_CopiesCode(t *testing.T) {
	code := 3
	ev := CompletedEvent(&code)
	code = 0
	assert.Equal(t, 3, *ev.ExitCode)
}

func TestOutputEvent_Terminal(t *testing.T) {
	assert.False(t, LineEvent("a").Terminal())
	assert.False(t, WarningEvent("b").Terminal())
	assert.True(t, FailedEvent("boom").Terminal())
	assert.Equal(t, `Line("a")`, LineEvent("a").String())
}

func TestProcessState_Stuck(t *testing.T) {
	assert.True(t, ProcessStateZombie.Stuck())
	assert.True(t, ProcessStateUninterruptibleExit.Stuck())
	assert.False(t, ProcessStateRunning.Stuck())
	assert.False(t, ProcessStateSleeping.Stuck())
	assert.Equal(t, "UninterruptibleExit", ProcessStateUninterruptibleExit.String())
}

func TestErrors_Matching(t *testing.T) {
	var err error = &InvalidConfigError{Field: "host", Reason: "is required"}
	assert.True(t, errors.Is(fmt.Errorf("start: %w", err), ErrInvalidConfig))
	assert.Contains(t, err.Error(), "host")

	spawn := &SpawnError{Path: "ansible-playbook", Err: os.ErrNotExist}
	assert.ErrorIs(t, spawn, os.ErrNotExist)

	var scan *ScanError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", &ScanError{Op: "list", Err: os.ErrPermission}), &scan))
	assert.Equal(t, "list", scan.Op)
}

func TestNewID_IsUUIDv4(t *testing.T) {
	id, err := uuid.Parse(NewID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}
