package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/provisioning"
)

type printer struct {
	out io.Writer
	err io.Writer

	header  *color.Color
	ok      *color.Color
	changed *color.Color
	failed  *color.Color
	warn    *color.Color
	bold    *color.Color
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newPrinter(out, errOut io.Writer, noColor bool) *printer {
	enabled := !noColor && os.Getenv("NO_COLOR") == "" && isTerminal(out)
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &printer{
		out:     out,
		err:     errOut,
		header:  mk(color.FgCyan, color.Bold),
		ok:      mk(color.FgGreen),
		changed: mk(color.FgYellow),
		failed:  mk(color.FgRed),
		warn:    mk(color.FgYellow),
		bold:    mk(color.Bold),
	}
}

// event prints one run event. host only appears in the completion banner.
func (p *printer) event(ev lib.OutputEvent, host string) {
	switch ev.Kind {
	case lib.EventLine:
		p.line(ev.Text)
	case lib.EventWarning:
		p.warn.Fprintln(p.err, "⚠️  "+ev.Text)
	default:
		p.banner(ev, host)
	}
}

func (p *printer) line(text string) {
	switch provisioning.ClassifyLine(text) {
	case provisioning.LineHeader:
		p.header.Fprintln(p.out, text)
	case provisioning.LineOK:
		p.ok.Fprintln(p.out, text)
	case provisioning.LineChanged:
		p.changed.Fprintln(p.out, text)
	case provisioning.LineError:
		p.failed.Fprintln(p.out, text)
	default:
		fmt.Fprintln(p.out, text)
	}
}

func (p *printer) banner(ev lib.OutputEvent, host string) {
	target := ""
	if host != "" {
		target = " on " + host
	}
	fmt.Fprintln(p.out)
	switch {
	case ev.Kind == lib.EventFailed:
		p.failed.Fprintf(p.out, "❌ Provisioning failed%s: %s\n", target, ev.Text)
	case ev.Success:
		p.ok.Fprintf(p.out, "✅ Provisioning completed successfully%s\n", target)
	case ev.ExitCode != nil:
		p.failed.Fprintf(p.out, "❌ Provisioning failed%s (exit code %d)\n", target, *ev.ExitCode)
	default:
		p.changed.Fprintf(p.out, "⏹  Provisioning stopped%s\n", target)
	}
}

// exitCode maps a terminal event to the CLI's exit status.
func exitCode(ev lib.OutputEvent) int {
	switch {
	case ev.Success:
		return 0
	case ev.ExitCode != nil && *ev.ExitCode != 0:
		return *ev.ExitCode
	case ev.Kind == lib.EventCompleted:
		return 130
	default:
		return 1
	}
}

func printStatusTable(w io.Writer, st *apiv1.RunStatus) {
	state := "Unknown"
	result := ""
	switch st.State {
	case apiv1.RunStateRunning:
		state = "Running"
	case apiv1.RunStateFinished:
		state = "Finished"
		if st.Result != nil {
			result = st.Result.Output().String()
		}
	}
	pid := ""
	if st.PID != 0 {
		pid = fmt.Sprint(st.PID)
	}
	started := st.StartTime.Local().Format(time.DateTime)

	headers := []string{"ID", "STATE", "HOST", "PID", "STARTED", "RESULT"}
	row := []string{st.RunID, state, st.Host, pid, started, result}
	printTable(w, headers, [][]string{row})
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	sep := "+-" + strings.Join(parts, "-+-") + "-+\n"

	printRow := func(cells []string) {
		padded := make([]string, len(cells))
		for i, cell := range cells {
			padded[i] = pad(cell, widths[i])
		}
		fmt.Fprint(w, "| "+strings.Join(padded, " | ")+" |\n")
	}

	fmt.Fprint(w, sep)
	printRow(headers)
	fmt.Fprint(w, sep)
	for _, row := range rows {
		printRow(row)
	}
	fmt.Fprint(w, sep)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
