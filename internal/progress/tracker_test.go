package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker(time.Hour, 10*time.Second, nil)
	tr.Create("diag_1", 42, 10)

	snap, ok := tr.Get("diag_1")
	require.True(t, ok)
	assert.Equal(t, types.StatusInitializing, snap.Status)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 0, snap.Progress)
	assert.False(t, snap.ShouldStopPolling)

	tr.Update("diag_1", types.StatusAIFetching, 5, 4, 1)
	snap, _ = tr.Get("diag_1")
	assert.Equal(t, types.StatusAIFetching, snap.Status)
	assert.Equal(t, 50, snap.Progress)
	assert.Equal(t, 4, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)

	tr.Update("diag_1", types.StatusCompleted, 10, 9, 1)
	snap, _ = tr.Get("diag_1")
	assert.Equal(t, 100, snap.Progress)
	assert.True(t, snap.ShouldStopPolling, "terminal status stops polling")

	tr.Remove("diag_1")
	_, ok = tr.Get("diag_1")
	assert.False(t, ok)
}

func TestPollIntervalLadder(t *testing.T) {
	tr := NewTracker(time.Hour, 10*time.Second, nil)
	tr.Create("diag_1", 1, 1)

	intervals := make(map[int]int64)
	for i := 1; i <= 31; i++ {
		snap, ok := tr.Get("diag_1")
		require.True(t, ok)
		assert.Equal(t, i, snap.PollCount)
		intervals[i] = snap.NextPollMs
	}

	assert.Equal(t, int64(2000), intervals[1])
	assert.Equal(t, int64(2000), intervals[5])
	assert.Equal(t, int64(3000), intervals[6])
	assert.Equal(t, int64(3000), intervals[15])
	assert.Equal(t, int64(5000), intervals[16])
	assert.Equal(t, int64(5000), intervals[30])
	assert.Equal(t, int64(10000), intervals[31])
}

func TestPollIntervalCappedByMaxWait(t *testing.T) {
	tr := NewTracker(time.Hour, 4*time.Second, nil)
	tr.Create("diag_1", 1, 1)

	var snap *Snapshot
	for i := 0; i < 31; i++ {
		snap, _ = tr.Get("diag_1")
	}
	assert.Equal(t, int64(4000), snap.NextPollMs)
}

func TestLazyTimeoutFiresOnce(t *testing.T) {
	fired := make([]string, 0, 2)
	tr := NewTracker(10*time.Millisecond, 10*time.Second, func(id string) {
		fired = append(fired, id)
	})
	tr.Create("diag_1", 1, 4)
	time.Sleep(20 * time.Millisecond)

	tr.Get("diag_1")
	tr.Get("diag_1")
	require.Len(t, fired, 1, "timeout callback fires exactly once")
	assert.Equal(t, "diag_1", fired[0])
}

func TestLazyTimeoutVisibleOnDetectingPoll(t *testing.T) {
	var tr *Tracker
	tr = NewTracker(10*time.Millisecond, 10*time.Second, func(id string) {
		tr.Update(id, types.StatusTimeout, 1, 1, 0)
		tr.SetError(id, "diagnosis timed out")
	})
	tr.Create("diag_1", 1, 4)
	time.Sleep(20 * time.Millisecond)

	snap, ok := tr.Get("diag_1")
	require.True(t, ok)
	assert.Equal(t, types.StatusTimeout, snap.Status, "the detecting poll reports the flip itself")
	assert.True(t, snap.ShouldStopPolling)
	assert.Equal(t, "diagnosis timed out", snap.Error)
}

func TestLazyTimeoutSkipsTerminal(t *testing.T) {
	fired := 0
	tr := NewTracker(10*time.Millisecond, 10*time.Second, func(string) { fired++ })
	tr.Create("diag_1", 1, 4)
	tr.Update("diag_1", types.StatusCompleted, 4, 4, 0)
	time.Sleep(20 * time.Millisecond)

	tr.Get("diag_1")
	assert.Equal(t, 0, fired, "terminal executions never time out")
}

func TestStageAndError(t *testing.T) {
	tr := NewTracker(time.Hour, 10*time.Second, nil)
	tr.Create("diag_1", 1, 4)
	tr.SetStage("diag_1", "calling models")
	tr.SetError("diag_1", "boom")
	tr.MarkStopped("diag_1")

	snap, _ := tr.Get("diag_1")
	assert.Equal(t, "calling models", snap.Stage)
	assert.Equal(t, "boom", snap.Error)
	assert.True(t, snap.ShouldStopPolling)
}
