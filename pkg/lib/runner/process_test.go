package runner

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

func readLines(t *testing.T, p *Process) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(p.Stdout())
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestStdout_StreamsBeforeExit(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(nil)

	p, err := r.Start(lib.NewID(), Spec{Path: "sh", Args: []string{"-c", "echo first; sleep 0.3; echo second"}})
	require.NoError(t, err)

	reader := bufio.NewReader(p.Stdout())
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "first\n", line)
	assert.False(t, p.Exited(), "first line should arrive while the child is still running")

	rest, _ := reader.ReadString('\n')
	assert.Equal(t, "second\n", rest)
}

func TestStdout_ManyLinesInOrder(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(nil)

	p, err := r.Start(lib.NewID(), Spec{Path: "sh", Args: []string{"-c", "i=1; while [ $i -le 100 ]; do echo $i; i=$((i+1)); done;"}})
	require.NoError(t, err)

	lines := readLines(t, p)
	require.Len(t, lines, 100)
	assert.Equal(t, "1", lines[0])
	assert.Equal(t, "100", lines[99])

	_, err = p.Wait(2 * time.Second)
	require.NoError(t, err)
}

func TestStdout_NoOutputCloses(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(nil)

	p, err := r.Start(lib.NewID(), Spec{Path: "sh", Args: []string{"-c", ":"}})
	require.NoError(t, err)

	done := make(chan []string)
	go func() { done <- readLines(t, p) }()

	select {
	case lines := <-done:
		assert.Empty(t, lines)
	case <-time.After(2 * time.Second):
		t.Fatalf("stdout did not close for no-output process")
	}
}

func TestStdin_IsNull(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(nil)

	p, err := r.Start(lib.NewID(), Spec{Path: "sh", Args: []string{"-c", "cat; echo end"}})
	require.NoError(t, err)

	lines := readLines(t, p)
	assert.Equal(t, "end", strings.Join(lines, ","))
}
