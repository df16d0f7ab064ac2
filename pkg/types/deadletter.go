package types

import "time"

// DeadLetterStatus is the triage state of a dead letter entry.
type DeadLetterStatus string

const (
	DeadLetterPending  DeadLetterStatus = "pending"
	DeadLetterResolved DeadLetterStatus = "resolved"
	DeadLetterRetrying DeadLetterStatus = "retrying"
)

// DeadLetterEntry records a task whose retries were exhausted, kept for
// manual inspection or replay rather than silently dropped.
type DeadLetterEntry struct {
	ID           int64            `json:"id"`
	ExecutionID  string           `json:"execution_id"`
	Task         *Task            `json:"task"`
	ErrorKind    ErrorKind        `json:"error_kind"`
	ErrorMessage string           `json:"error_message"`
	Context      map[string]any   `json:"context,omitempty"`
	Priority     int              `json:"priority"` // higher sorts first
	RetryCount   int              `json:"retry_count"`
	Status       DeadLetterStatus `json:"status"`
	HandledBy    string           `json:"handled_by,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
