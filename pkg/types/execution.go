package types

import "time"

// Status is the state-machine state of one diagnosis execution.
type Status string

const (
	StatusInitializing     Status = "initializing"
	StatusAIFetching       Status = "ai_fetching"
	StatusAnalyzing        Status = "analyzing"
	StatusCompleted        Status = "completed"
	StatusPartialCompleted Status = "partial_completed"
	StatusFailed           Status = "failed"
	StatusTimeout          Status = "timeout"
)

// IsTerminal reports whether the status is a terminal state. Terminal
// states are monotonic: once reached, no transition leaves them.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartialCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status value is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusInitializing, StatusAIFetching, StatusAnalyzing,
		StatusCompleted, StatusPartialCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// ExecutionState is the mutable lifecycle record of one execution. It is
// mutated only by the engine and state machine (single writer) and read
// concurrently by the polling API via snapshots.
type ExecutionState struct {
	ExecutionID       string     `json:"execution_id"`
	UserID            int64      `json:"user_id"`
	Status            Status     `json:"status"`
	Completed         int        `json:"completed"`
	Total             int        `json:"total"`
	Succeeded         int        `json:"succeeded"`
	Failed            int        `json:"failed"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	ShouldStopPolling bool       `json:"should_stop_polling"`
	Error             string     `json:"error,omitempty"`
}

// Progress returns the completion percentage, rounded to the nearest
// integer. A zero-task execution reports 0.
func (s *ExecutionState) Progress() int {
	if s.Total <= 0 {
		return 0
	}
	return int(float64(s.Completed)/float64(s.Total)*100 + 0.5)
}
