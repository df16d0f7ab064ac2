package types

// TaskKey identifies one (question, model, brand) cell of the diagnosis
// matrix. It is unique within an execution.
type TaskKey struct {
	Question string `json:"question"`
	Model    string `json:"model"`
	Brand    string `json:"brand"`
}

// Task is one unit of work: ask one model one brand-substituted question.
// Tasks are immutable once created and owned by the engine until dispatched.
type Task struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id"`
	Question    string `json:"question"` // raw template
	Prompt      string `json:"prompt"`   // template with brand substituted
	Model       string `json:"model"`
	Brand       string `json:"brand"`
	Index       int    `json:"index"`
}

// Key returns the task's matrix key.
func (t *Task) Key() TaskKey {
	return TaskKey{Question: t.Question, Model: t.Model, Brand: t.Brand}
}

// Response is a single model reply, normalized across platforms.
type Response struct {
	Content    string
	LatencyMs  int64
	TokensUsed *int
	Raw        map[string]any
}

// TaskResult is the outcome of executing one task. Either Content is set
// (success) or Err describes the final classified failure after all retry
// attempts were spent.
type TaskResult struct {
	Task       *Task
	Content    string
	LatencyMs  int64
	TokensUsed *int
	Raw        map[string]any
	Attempts   int
	Succeeded  bool
	Err        error
	ErrorKind  ErrorKind
}
