package deadletter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

func task(id, execID string) *types.Task {
	return &types.Task{ID: id, ExecutionID: execID, Question: "q", Model: "m", Brand: "b"}
}

func TestAddAssignsIDsAndPriority(t *testing.T) {
	q := NewQueue(nil)

	e1 := q.Add(task("t1", "diag_1"), types.ErrKindNetwork, "conn reset", 3, nil)
	e2 := q.Add(task("t2", "diag_1"), types.ErrKindAuth, "401", 1, nil)

	assert.Equal(t, int64(1), e1.ID)
	assert.Equal(t, int64(2), e2.ID)
	assert.Equal(t, 3, e1.Priority)
	assert.Equal(t, 8, e2.Priority, "auth failures block everything, highest priority")
	assert.Equal(t, types.DeadLetterPending, e1.Status)
}

func TestListSortsByPriorityThenAge(t *testing.T) {
	q := NewQueue(nil)
	q.Add(task("t1", "diag_1"), types.ErrKindNetwork, "x", 3, nil)
	q.Add(task("t2", "diag_1"), types.ErrKindAuth, "x", 1, nil)
	q.Add(task("t3", "diag_1"), types.ErrKindRateLimit, "x", 3, nil)
	q.Add(task("t4", "diag_2"), types.ErrKindAuth, "x", 1, nil)

	all := q.List(Filter{})
	require.Len(t, all, 4)
	assert.Equal(t, "t2", all[0].Task.ID, "oldest auth entry first")
	assert.Equal(t, "t4", all[1].Task.ID)
	assert.Equal(t, "t3", all[2].Task.ID)
	assert.Equal(t, "t1", all[3].Task.ID)
}

func TestListFilters(t *testing.T) {
	q := NewQueue(nil)
	q.Add(task("t1", "diag_1"), types.ErrKindNetwork, "x", 3, nil)
	q.Add(task("t2", "diag_2"), types.ErrKindAuth, "x", 1, nil)

	byExec := q.List(Filter{ExecutionID: "diag_2"})
	require.Len(t, byExec, 1)
	assert.Equal(t, "t2", byExec[0].Task.ID)

	byKind := q.List(Filter{ErrorKind: types.ErrKindNetwork})
	require.Len(t, byKind, 1)
	assert.Equal(t, "t1", byKind[0].Task.ID)

	limited := q.List(Filter{Limit: 1})
	assert.Len(t, limited, 1)
}

func TestResolveAndRetryTransitions(t *testing.T) {
	q := NewQueue(nil)
	e := q.Add(task("t1", "diag_1"), types.ErrKindServer, "503", 3, nil)

	ok := q.MarkResolved(e.ID, "ops", "platform incident, not our bug")
	require.True(t, ok)
	got, _ := q.Get(e.ID)
	assert.Equal(t, types.DeadLetterResolved, got.Status)
	assert.Equal(t, "ops", got.HandledBy)

	tk, ok := q.MarkForRetry(e.ID)
	require.True(t, ok)
	assert.Equal(t, "t1", tk.ID)
	got, _ = q.Get(e.ID)
	assert.Equal(t, types.DeadLetterPending, got.Status, "retry puts the entry back in the pending pool")
	assert.Equal(t, 4, got.RetryCount)

	assert.False(t, q.MarkResolved(999, "", ""))
	_, ok = q.MarkForRetry(999)
	assert.False(t, ok)
}

type failingSink struct{ calls int }

func (s *failingSink) AppendDeadLetter(*types.DeadLetterEntry) error {
	s.calls++
	return errors.New("db down")
}

func TestSinkFailureDoesNotLoseEntry(t *testing.T) {
	sink := &failingSink{}
	q := NewQueue(sink)
	q.Add(task("t1", "diag_1"), types.ErrKindNetwork, "x", 3, nil)

	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, 1, q.CountByExecution("diag_1"), "entry survives sink failure in memory")
}
