package provisioning

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

// escapedSGR matches colour codes that reach us as literal text, as in JSON
// encoded or double-quoted ansible output.
var escapedSGR = regexp.MustCompile(`\\(?:u001b|033|x1b)\[[0-9;]*m`)

// StripANSI removes terminal escape sequences, raw or escaped as text.
func StripANSI(s string) string {
	return ansi.Strip(escapedSGR.ReplaceAllString(s, ""))
}

// timingOnly reports banner padding lines such as the star rows ansible
// prints under its timing callback.
func timingOnly(s string) bool {
	return strings.Contains(s, "*******") && !strings.Contains(s, "TASK") && !strings.Contains(s, "PLAY")
}

// AnsibleLineFilter strips colour codes and drops blank lines. Timing-only
// banner lines are dropped from stdout.
func AnsibleLineFilter(kind lib.EventKind, line string) (string, bool) {
	clean := StripANSI(line)
	if strings.TrimSpace(clean) == "" {
		return "", false
	}
	if kind == lib.EventLine && timingOnly(clean) {
		return "", false
	}
	return clean, true
}

// LineClass is the visual category of an ansible output line.
type LineClass int

const (
	LinePlain LineClass = iota
	LineHeader
	LineOK
	LineChanged
	LineError
)

func ClassifyLine(line string) LineClass {
	t := strings.TrimSpace(line)
	switch {
	case strings.Contains(t, "FAILED"), strings.Contains(t, "fatal:"), strings.Contains(t, "ERROR"):
		return LineError
	case strings.Contains(t, "changed:"):
		return LineChanged
	case strings.Contains(t, "ok:"), strings.Contains(t, "SUCCESS"):
		return LineOK
	case strings.HasPrefix(t, "TASK"), strings.HasPrefix(t, "PLAY"):
		return LineHeader
	default:
		return LinePlain
	}
}
