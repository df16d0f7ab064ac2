package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/glensun810-ai/geodiag/pkg/logger"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

// validTransitions is the full transition relation. Terminal states have no
// outgoing edges; failed and timeout are reachable from every non-terminal
// state.
var validTransitions = map[types.Status][]types.Status{
	types.StatusInitializing: {
		types.StatusAIFetching,
		types.StatusFailed,
		types.StatusTimeout,
	},
	types.StatusAIFetching: {
		types.StatusAnalyzing,
		types.StatusFailed,
		types.StatusTimeout,
	},
	types.StatusAnalyzing: {
		types.StatusCompleted,
		types.StatusPartialCompleted,
		types.StatusFailed,
		types.StatusTimeout,
	},
}

// Machine is the per-execution diagnosis state machine. Transitions are
// serialized by its mutex; invalid transitions are logged and ignored
// rather than corrupting the lifecycle, so racing terminators (timeout
// timer vs. finalizer) are safe.
type Machine struct {
	mu          sync.Mutex
	executionID string
	current     types.Status
	onChange    func(from, to types.Status)
	onTerminal  func(final types.Status)
}

// NewMachine creates a machine in the initializing state. onChange fires on
// every accepted transition, onTerminal once when a terminal state is
// entered; both may be nil and run while the machine lock is held.
func NewMachine(executionID string, onChange func(from, to types.Status), onTerminal func(types.Status)) *Machine {
	return &Machine{
		executionID: executionID,
		current:     types.StatusInitializing,
		onChange:    onChange,
		onTerminal:  onTerminal,
	}
}

// Current returns the current state.
func (m *Machine) Current() types.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition attempts to move to the target state. It returns whether the
// transition was accepted. Rejected transitions are no-ops: a terminal
// state is never left, and skipping phases is not allowed.
func (m *Machine) Transition(to types.Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allowed(m.current, to) {
		logger.L().Warn("状态转换被拒绝",
			zap.String("execution_id", m.executionID),
			zap.String("from", string(m.current)),
			zap.String("to", string(to)))
		return false
	}

	from := m.current
	m.current = to
	logger.L().Info("状态转换",
		zap.String("execution_id", m.executionID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if m.onChange != nil {
		m.onChange(from, to)
	}
	if to.IsTerminal() && m.onTerminal != nil {
		m.onTerminal(to)
	}
	return true
}

func (m *Machine) allowed(from, to types.Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the machine reached a terminal state.
func (m *Machine) IsTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.IsTerminal()
}
