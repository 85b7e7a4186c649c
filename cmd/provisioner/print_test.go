package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
)

func plainPrinter() (*printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return newPrinter(&out, &errOut, true), &out, &errOut
}

func TestPrinter_EventsAndBanner(t *testing.T) {
	p, out, errOut := plainPrinter()

	p.event(lib.LineEvent("TASK [common : install packages]"), "203.0.113.10")
	p.event(lib.WarningEvent("deprecation"), "203.0.113.10")
	p.event(lib.CompletedEvent(lib.IntPtr(0)), "203.0.113.10")

	assert.Contains(t, out.String(), "TASK [common : install packages]\n")
	assert.Contains(t, out.String(), "✅ Provisioning completed successfully on 203.0.113.10")
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Equal(t, "⚠️  deprecation\n", errOut.String())
}

func TestPrinter_Banners(t *testing.T) {
	tests := []struct {
		ev   lib.OutputEvent
		want string
	}{
		{lib.CompletedEvent(lib.IntPtr(2)), "❌ Provisioning failed (exit code 2)"},
		{lib.CompletedEvent(nil), "Provisioning stopped"},
		{lib.FailedEvent("wait failed"), "❌ Provisioning failed: wait failed"},
	}
	for _, tt := range tests {
		p, out, _ := plainPrinter()
		p.event(tt.ev, "")
		assert.Contains(t, out.String(), tt.want)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(lib.CompletedEvent(lib.IntPtr(0))))
	assert.Equal(t, 4, exitCode(lib.CompletedEvent(lib.IntPtr(4))))
	assert.Equal(t, exitInterrupted, exitCode(lib.CompletedEvent(nil)))
	assert.Equal(t, 1, exitCode(lib.FailedEvent("boom")))

	assert.NoError(t, exitFor(lib.CompletedEvent(lib.IntPtr(0))))
	assert.Equal(t, &exitError{code: 4}, exitFor(lib.CompletedEvent(lib.IntPtr(4))))
}

func TestPrintStatusTable(t *testing.T) {
	var buf bytes.Buffer
	code := int32(0)
	end := time.Now()
	printStatusTable(&buf, &apiv1.RunStatus{
		RunID:     "3f0c9a6e-2c1d-4c55-9d0a-5b8f0c7f1e21",
		State:     apiv1.RunStateFinished,
		Host:      "203.0.113.10",
		StartTime: end.Add(-time.Minute),
		EndTime:   &end,
		Result:    &apiv1.Event{Kind: apiv1.EventKindCompleted, Success: true, ExitCode: &code},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[1], "STATE")
	assert.Contains(t, lines[3], "Finished")
	assert.Contains(t, lines[3], "Completed(success=true, exit_code=0)")
	assert.Equal(t, len(lines[0]), len(lines[3]))
}

func TestPrintProcesses(t *testing.T) {
	var buf bytes.Buffer
	printProcesses(&buf, []lib.ProcessRecord{
		{PID: 4242, ParentPID: 1, Name: "provisioner", State: lib.ProcessStateZombie},
	})
	assert.Contains(t, buf.String(), "| 4242 | 1    | provisioner | Zombie |")
}
