package store

import (
	"context"
	"time"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// Checkpoint 一次执行的可恢复快照
type Checkpoint struct {
	ExecutionID string
	Seq         int
	Status      types.Status
	Completed   int
	Succeeded   int
	Failed      int
	Report      *types.AggregatedReport
}

// ExecutionSummary 执行列表项
type ExecutionSummary struct {
	ExecutionID string     `json:"execution_id"`
	UserID      int64      `json:"user_id"`
	MainBrand   string     `json:"main_brand"`
	Status      string     `json:"status"`
	TotalTasks  int        `json:"total_tasks"`
	Completed   int        `json:"completed"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Gateway 是引擎对持久化层的读写契约。实现必须容忍高频检查点写入；
// 写入失败由调用方记录日志，绝不使执行失败。
type Gateway interface {
	// CreateExecution 登记一次新执行
	CreateExecution(ctx context.Context, executionID string, userID int64, cfg *types.ExecutionConfig) error

	// SaveCheckpoint 追加一条检查点并翻转 latest 指针
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error

	// SaveFinalReport 写入终态与最终报告
	SaveFinalReport(ctx context.Context, st *types.ExecutionState, report *types.AggregatedReport) error

	// LoadState 恢复一次执行的最新状态
	LoadState(ctx context.Context, executionID string) (*types.ExecutionState, error)

	// LoadReport 读取最终报告，未持久化时回退到最新检查点快照
	LoadReport(ctx context.Context, executionID string) (*types.AggregatedReport, error)

	// AppendDeadLetter 持久化一条死信
	AppendDeadLetter(entry *types.DeadLetterEntry) error

	// ListExecutions 按用户分页列出执行，userID 为 0 时列出全部
	ListExecutions(ctx context.Context, userID int64, limit, offset int) ([]*ExecutionSummary, int64, error)
}
