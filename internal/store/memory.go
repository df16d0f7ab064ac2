package store

import (
	"context"
	"sync"
	"time"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// MemoryGateway 纯内存实现，用于无数据库运行和测试
type MemoryGateway struct {
	mu          sync.RWMutex
	executions  map[string]*memExecution
	deadLetters []*types.DeadLetterEntry
	order       []string
}

type memExecution struct {
	summary     ExecutionSummary
	cfg         *types.ExecutionConfig
	state       *types.ExecutionState
	checkpoints []*Checkpoint
	finalReport *types.AggregatedReport
}

// NewMemoryGateway 创建内存网关
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{executions: make(map[string]*memExecution)}
}

// CreateExecution 登记一次新执行
func (m *MemoryGateway) CreateExecution(_ context.Context, executionID string, userID int64, cfg *types.ExecutionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.executions[executionID] = &memExecution{
		summary: ExecutionSummary{
			ExecutionID: executionID,
			UserID:      userID,
			MainBrand:   cfg.MainBrand,
			Status:      string(types.StatusInitializing),
			TotalTasks:  cfg.TotalTasks(),
			StartTime:   &now,
			CreatedAt:   now,
		},
		cfg: cfg,
		state: &types.ExecutionState{
			ExecutionID: executionID,
			UserID:      userID,
			Status:      types.StatusInitializing,
			Total:       cfg.TotalTasks(),
			StartTime:   now,
		},
	}
	m.order = append(m.order, executionID)
	return nil
}

// SaveCheckpoint 追加检查点
func (m *MemoryGateway) SaveCheckpoint(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[cp.ExecutionID]
	if !ok {
		return types.ErrExecutionNotFound
	}
	e.checkpoints = append(e.checkpoints, cp)
	e.state.Status = cp.Status
	e.state.Completed = cp.Completed
	e.state.Succeeded = cp.Succeeded
	e.state.Failed = cp.Failed
	e.summary.Status = string(cp.Status)
	e.summary.Completed = cp.Completed
	return nil
}

// SaveFinalReport 写入终态与最终报告
func (m *MemoryGateway) SaveFinalReport(_ context.Context, st *types.ExecutionState, report *types.AggregatedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[st.ExecutionID]
	if !ok {
		return types.ErrExecutionNotFound
	}
	stCopy := *st
	e.state = &stCopy
	e.finalReport = report
	e.summary.Status = string(st.Status)
	e.summary.Completed = st.Completed
	e.summary.EndTime = st.EndTime
	return nil
}

// LoadState 读取最新状态
func (m *MemoryGateway) LoadState(_ context.Context, executionID string) (*types.ExecutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[executionID]
	if !ok {
		return nil, types.ErrExecutionNotFound
	}
	stCopy := *e.state
	return &stCopy, nil
}

// LoadReport 优先最终报告，回退最新检查点
func (m *MemoryGateway) LoadReport(_ context.Context, executionID string) (*types.AggregatedReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[executionID]
	if !ok {
		return nil, types.ErrExecutionNotFound
	}
	if e.finalReport != nil {
		return e.finalReport, nil
	}
	if n := len(e.checkpoints); n > 0 && e.checkpoints[n-1].Report != nil {
		return e.checkpoints[n-1].Report, nil
	}
	return nil, types.ErrExecutionNotFound
}

// AppendDeadLetter 追加死信
func (m *MemoryGateway) AppendDeadLetter(entry *types.DeadLetterEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadLetters = append(m.deadLetters, entry)
	return nil
}

// ListExecutions 按创建顺序倒序列出
func (m *MemoryGateway) ListExecutions(_ context.Context, userID int64, limit, offset int) ([]*ExecutionSummary, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*ExecutionSummary, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.executions[m.order[i]]
		if userID > 0 && e.summary.UserID != userID {
			continue
		}
		s := e.summary
		matched = append(matched, &s)
	}

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// Checkpoints 返回一次执行的全部检查点（测试用）
func (m *MemoryGateway) Checkpoints(executionID string) []*Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.executions[executionID]; ok {
		out := make([]*Checkpoint, len(e.checkpoints))
		copy(out, e.checkpoints)
		return out
	}
	return nil
}

// DeadLetters 返回全部已持久化死信（测试用）
func (m *MemoryGateway) DeadLetters() []*types.DeadLetterEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.DeadLetterEntry, len(m.deadLetters))
	copy(out, m.deadLetters)
	return out
}
