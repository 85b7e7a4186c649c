package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

func TestAnsibleLineFilter(t *testing.T) {
	tests := []struct {
		name string
		kind lib.EventKind
		in   string
		want string
		keep bool
	}{
		{"plain", lib.EventLine, "ok: [host]", "ok: [host]", true},
		{"ansi", lib.EventLine, "\x1b[0;32mok: [host]\x1b[0m", "ok: [host]", true},
		{"escaped ansi", lib.EventLine, `\u001b[1;31mfatal: [host]\u001b[0m`, "fatal: [host]", true},
		{"escaped octal", lib.EventLine, `\033[0;33mchanged: [host]\033[0m`, "changed: [host]", true},
		{"cursor and title", lib.EventLine, "\x1b[2K\x1b]0;ansible\x07ok: [host]", "ok: [host]", true},
		{"utf8 kept", lib.EventWarning, "\x1b[0;35m⚠ deprecated\x1b[0m", "⚠ deprecated", true},
		{"blank", lib.EventLine, "   ", "", false},
		{"colour only", lib.EventWarning, "\x1b[0m", "", false},
		{"timing banner", lib.EventLine, "Monday 01 ****************************", "", false},
		{"task banner", lib.EventLine, "TASK [docker : install] ****************", "TASK [docker : install] ****************", true},
		{"stderr stars", lib.EventWarning, "****************", "****************", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := AnsibleLineFilter(tt.kind, tt.in)
			assert.Equal(t, tt.keep, keep)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyLine(t *testing.T) {
	assert.Equal(t, LineError, ClassifyLine("fatal: [1.2.3.4]: UNREACHABLE!"))
	assert.Equal(t, LineError, ClassifyLine("  FAILED - RETRYING"))
	assert.Equal(t, LineChanged, ClassifyLine("changed: [1.2.3.4]"))
	assert.Equal(t, LineOK, ClassifyLine("ok: [1.2.3.4]"))
	assert.Equal(t, LineHeader, ClassifyLine("PLAY [all] ***"))
	assert.Equal(t, LinePlain, ClassifyLine("skipping: [1.2.3.4]"))
}
