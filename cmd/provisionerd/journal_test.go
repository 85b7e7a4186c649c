package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib"
)

func TestJournal_AppendAndFinish(t *testing.T) {
	j := newJournal("run-1", "client1", "203.0.113.10", 4242)
	st := j.status()
	assert.Equal(t, apiv1.RunStateRunning, st.State)
	assert.Equal(t, 4242, st.PID)
	assert.Nil(t, st.EndTime)

	assert.False(t, j.append(lib.LineEvent("a")))
	assert.False(t, j.append(lib.WarningEvent("b")))
	assert.True(t, j.append(lib.CompletedEvent(lib.IntPtr(0))))
	assert.True(t, j.finished())

	st = j.status()
	assert.Equal(t, apiv1.RunStateFinished, st.State)
	assert.Zero(t, st.PID)
	require.NotNil(t, st.EndTime)
	require.NotNil(t, st.Result)
	assert.Equal(t, int64(3), st.Result.Seq)
	assert.True(t, j.events.Closed())
}

func TestJournal_ReplayFromStart(t *testing.T) {
	j := newJournal("run-1", "client1", "", 0)
	j.append(lib.LineEvent("first"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch := j.events.Subscribe(ctx, 4)

	j.append(lib.LineEvent("second"))
	j.append(lib.FailedEvent("wait failed"))

	var seqs []int64
	for ev := range ch {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}
