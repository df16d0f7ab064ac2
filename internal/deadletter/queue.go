package deadletter

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glensun810-ai/geodiag/pkg/logger"
	"github.com/glensun810-ai/geodiag/pkg/types"
	"github.com/glensun810-ai/geodiag/pkg/utils"
)

// maxErrorMessageBytes caps stored error messages; platform errors can
// embed whole response bodies.
const maxErrorMessageBytes = 2000

// Sink persists dead letters outside process memory. Optional: a nil sink
// keeps the queue purely in-memory.
type Sink interface {
	AppendDeadLetter(entry *types.DeadLetterEntry) error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ExecutionID string
	Status      types.DeadLetterStatus
	ErrorKind   types.ErrorKind
	Limit       int
}

// Queue collects tasks whose retries were exhausted. Entries are kept in
// memory for triage and mirrored to the sink when one is configured; a sink
// write failure is logged and never fails the execution.
type Queue struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]*types.DeadLetterEntry
	sink    Sink
}

// NewQueue creates a queue; sink may be nil.
func NewQueue(sink Sink) *Queue {
	return &Queue{
		nextID:  1,
		entries: make(map[int64]*types.DeadLetterEntry),
		sink:    sink,
	}
}

// Add records one exhausted task and returns the stored entry.
func (q *Queue) Add(task *types.Task, errKind types.ErrorKind, errMsg string, retryCount int, ctx map[string]any) *types.DeadLetterEntry {
	now := time.Now()
	entry := &types.DeadLetterEntry{
		ExecutionID:  task.ExecutionID,
		Task:         task,
		ErrorKind:    errKind,
		ErrorMessage: utils.Truncate(errMsg, maxErrorMessageBytes),
		Context:      ctx,
		Priority:     priorityOf(errKind),
		RetryCount:   retryCount,
		Status:       types.DeadLetterPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	q.mu.Lock()
	entry.ID = q.nextID
	q.nextID++
	q.entries[entry.ID] = entry
	sink := q.sink
	q.mu.Unlock()

	logger.L().Warn("任务进入死信队列",
		zap.String("execution_id", task.ExecutionID),
		zap.String("task_id", task.ID),
		zap.String("model", task.Model),
		zap.String("error_kind", string(errKind)),
		zap.Int("retry_count", retryCount))

	if sink != nil {
		if err := sink.AppendDeadLetter(entry); err != nil {
			logger.L().Error("死信持久化失败",
				zap.Int64("entry_id", entry.ID),
				zap.Error(err))
		}
	}
	return entry
}

// List returns matching entries sorted by priority desc, then age.
func (q *Queue) List(f Filter) []*types.DeadLetterEntry {
	q.mu.RLock()
	out := make([]*types.DeadLetterEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if utils.IsNotEmpty(f.ExecutionID) && e.ExecutionID != f.ExecutionID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.ErrorKind != "" && e.ErrorKind != f.ErrorKind {
			continue
		}
		out = append(out, e)
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Get returns one entry by ID.
func (q *Queue) Get(id int64) (*types.DeadLetterEntry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[id]
	return e, ok
}

// MarkResolved closes an entry after manual triage.
func (q *Queue) MarkResolved(id int64, handledBy, notes string) bool {
	return q.update(id, func(e *types.DeadLetterEntry) {
		e.Status = types.DeadLetterResolved
		e.HandledBy = handledBy
		e.Notes = notes
	})
}

// MarkForRetry bumps the retry counter, moves the entry back to pending
// and returns its task for replay.
func (q *Queue) MarkForRetry(id int64) (*types.Task, bool) {
	var task *types.Task
	ok := q.update(id, func(e *types.DeadLetterEntry) {
		e.RetryCount++
		e.Status = types.DeadLetterPending
		task = e.Task
	})
	return task, ok
}

// CountByExecution returns how many entries one execution produced.
func (q *Queue) CountByExecution(executionID string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, e := range q.entries {
		if e.ExecutionID == executionID {
			n++
		}
	}
	return n
}

func (q *Queue) update(id int64, fn func(*types.DeadLetterEntry)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return false
	}
	fn(e)
	e.UpdatedAt = time.Now()
	return true
}

// priorityOf maps error kinds to triage priority: configuration problems
// (auth, quota) block every future execution and sort first, transient
// platform trouble sorts last.
func priorityOf(kind types.ErrorKind) int {
	switch kind {
	case types.ErrKindAuth, types.ErrKindQuota:
		return 8
	case types.ErrKindModelNotFound, types.ErrKindContentFilter:
		return 6
	case types.ErrKindRateLimit:
		return 5
	case types.ErrKindServer, types.ErrKindParse:
		return 4
	case types.ErrKindNetwork, types.ErrKindTimeout:
		return 3
	default:
		return 1
	}
}
