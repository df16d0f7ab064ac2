package logic

import (
	"context"

	"github.com/glensun810-ai/geodiag/internal/deadletter"
	"github.com/glensun810-ai/geodiag/internal/svc"
	apptypes "github.com/glensun810-ai/geodiag/internal/types"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

// ResolveDeadLetterReq 死信处理请求
type ResolveDeadLetterReq struct {
	HandledBy string `json:"handled_by"`
	Notes     string `json:"notes"`
}

// RetryDeadLetterResp 死信重试结果
type RetryDeadLetterResp struct {
	TaskID    string `json:"task_id"`
	Succeeded bool   `json:"succeeded"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// DeadLetterLogic 死信队列业务逻辑
type DeadLetterLogic struct {
	ctx context.Context
	svc *svc.ServiceContext
}

// NewDeadLetterLogic 创建死信业务逻辑
func NewDeadLetterLogic(ctx context.Context) *DeadLetterLogic {
	return &DeadLetterLogic{ctx: ctx, svc: svc.Ctx}
}

// List 按过滤条件列出死信
func (l *DeadLetterLogic) List(executionID string, status, kind string, limit int) []*types.DeadLetterEntry {
	return l.svc.Engine.DeadLetters().List(deadletter.Filter{
		ExecutionID: executionID,
		Status:      types.DeadLetterStatus(status),
		ErrorKind:   types.ErrorKind(kind),
		Limit:       limit,
	})
}

// Resolve 人工关闭一条死信
func (l *DeadLetterLogic) Resolve(id int64, req *ResolveDeadLetterReq) error {
	if !l.svc.Engine.DeadLetters().MarkResolved(id, req.HandledBy, req.Notes) {
		return apptypes.NewAppError(apptypes.ErrCodeDeadLetterNotFound, "死信记录不存在")
	}
	return nil
}

// Retry 重放一条死信任务并返回本次执行结果
func (l *DeadLetterLogic) Retry(id int64) (*RetryDeadLetterResp, error) {
	task, ok := l.svc.Engine.DeadLetters().MarkForRetry(id)
	if !ok {
		return nil, apptypes.NewAppError(apptypes.ErrCodeDeadLetterNotFound, "死信记录不存在")
	}

	result := l.svc.Engine.ReplayTask(l.ctx, task)
	resp := &RetryDeadLetterResp{
		TaskID:    task.ID,
		Succeeded: result.Succeeded,
		Attempts:  result.Attempts,
	}
	if result.Succeeded {
		_ = l.svc.Engine.DeadLetters().MarkResolved(id, "retry", "重放成功")
	} else if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp, nil
}
