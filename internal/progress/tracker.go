package progress

import (
	"sync"
	"time"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// Snapshot is one polling answer: current counters plus the interval the
// client should wait before asking again.
type Snapshot struct {
	ExecutionID string       `json:"execution_id"`
	Status      types.Status `json:"status"`
	Stage       string       `json:"stage,omitempty"`
	Progress    int          `json:"progress"` // 0-100
	Completed   int          `json:"completed"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`

	StartTime time.Time `json:"start_time"`
	ElapsedMs int64     `json:"elapsed_ms"`

	PollCount         int   `json:"poll_count"`
	NextPollMs        int64 `json:"next_poll_ms"`
	ShouldStopPolling bool  `json:"should_stop_polling"`

	Error string `json:"error,omitempty"`
}

type entry struct {
	state     types.ExecutionState
	stage     string
	pollCount int
	timedOut  bool
}

// Tracker keeps per-execution progress for the polling API. Get also
// enforces the execution deadline lazily: a poll that finds an expired,
// still-running execution fires the timeout callback exactly once, so a
// stuck execution is reaped even if its timer goroutine died.
type Tracker struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	maxAge      time.Duration
	maxPollWait time.Duration
	onTimeout   func(executionID string)
}

// NewTracker creates a tracker. maxAge bounds execution wall time; zero
// disables the lazy timeout check. onTimeout may be nil.
func NewTracker(maxAge, maxPollWait time.Duration, onTimeout func(string)) *Tracker {
	if maxPollWait <= 0 {
		maxPollWait = 10 * time.Second
	}
	return &Tracker{
		entries:     make(map[string]*entry),
		maxAge:      maxAge,
		maxPollWait: maxPollWait,
		onTimeout:   onTimeout,
	}
}

// Create registers a new execution.
func (t *Tracker) Create(executionID string, userID int64, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[executionID] = &entry{
		state: types.ExecutionState{
			ExecutionID: executionID,
			UserID:      userID,
			Status:      types.StatusInitializing,
			Total:       total,
			StartTime:   time.Now(),
		},
	}
}

// Update replaces the counters and status of an execution. Terminal
// statuses also stamp the end time and stop polling.
func (t *Tracker) Update(executionID string, status types.Status, completed, succeeded, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[executionID]
	if !ok {
		return
	}
	e.state.Status = status
	e.state.Completed = completed
	e.state.Succeeded = succeeded
	e.state.Failed = failed
	if status.IsTerminal() {
		now := time.Now()
		e.state.EndTime = &now
		e.state.ShouldStopPolling = true
	}
}

// SetStage records a human-readable phase label ("expanding matrix",
// "calling models", "aggregating").
func (t *Tracker) SetStage(executionID, stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[executionID]; ok {
		e.stage = stage
	}
}

// SetError attaches a terminal error message.
func (t *Tracker) SetError(executionID, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[executionID]; ok {
		e.state.Error = msg
	}
}

// MarkStopped flags the execution so clients stop polling regardless of
// status.
func (t *Tracker) MarkStopped(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[executionID]; ok {
		e.state.ShouldStopPolling = true
	}
}

// Get returns a snapshot and counts the poll. Unknown executions return
// (nil, false).
func (t *Tracker) Get(executionID string) (*Snapshot, bool) {
	t.mu.Lock()
	e, ok := t.entries[executionID]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	e.pollCount++

	var fireTimeout bool
	if t.maxAge > 0 && !e.timedOut && !e.state.Status.IsTerminal() &&
		time.Since(e.state.StartTime) > t.maxAge {
		e.timedOut = true
		fireTimeout = true
	}

	snap := t.snapshotLocked(e)
	onTimeout := t.onTimeout
	t.mu.Unlock()

	// Fire outside the lock: the callback transitions the state machine,
	// which calls back into Update. Re-read afterwards so the poll that
	// detected the expiry already reports the terminal status.
	if fireTimeout && onTimeout != nil {
		onTimeout(executionID)
		t.mu.RLock()
		if e, ok := t.entries[executionID]; ok {
			snap = t.snapshotLocked(e)
		}
		t.mu.RUnlock()
	}
	return snap, true
}

func (t *Tracker) snapshotLocked(e *entry) *Snapshot {
	return &Snapshot{
		ExecutionID:       e.state.ExecutionID,
		Status:            e.state.Status,
		Stage:             e.stage,
		Progress:          e.state.Progress(),
		Completed:         e.state.Completed,
		Total:             e.state.Total,
		Succeeded:         e.state.Succeeded,
		Failed:            e.state.Failed,
		StartTime:         e.state.StartTime,
		ElapsedMs:         time.Since(e.state.StartTime).Milliseconds(),
		PollCount:         e.pollCount,
		NextPollMs:        t.nextPollInterval(e.pollCount).Milliseconds(),
		ShouldStopPolling: e.state.ShouldStopPolling,
		Error:             e.state.Error,
	}
}

// Remove drops a tracked execution.
func (t *Tracker) Remove(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, executionID)
}

// nextPollInterval backs the polling ladder: frequent at first while the
// first answers arrive, then progressively slower.
func (t *Tracker) nextPollInterval(pollCount int) time.Duration {
	var d time.Duration
	switch {
	case pollCount <= 5:
		d = 2 * time.Second
	case pollCount <= 15:
		d = 3 * time.Second
	case pollCount <= 30:
		d = 5 * time.Second
	default:
		d = 10 * time.Second
	}
	if d > t.maxPollWait {
		d = t.maxPollWait
	}
	return d
}
