package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/glensun810-ai/geodiag/internal/progress"
	"github.com/glensun810-ai/geodiag/internal/store"
	"github.com/glensun810-ai/geodiag/internal/svc"
	apptypes "github.com/glensun810-ai/geodiag/internal/types"
	"github.com/glensun810-ai/geodiag/pkg/redis"
	"github.com/glensun810-ai/geodiag/pkg/types"
	"github.com/glensun810-ai/geodiag/pkg/utils"
)

// statusCacheTTL 状态查询缓存时长，轮询间隔远大于它，缓存只挡突发重复请求
const statusCacheTTL = 2 * time.Second

// SubmitDiagnosisReq 提交诊断请求
type SubmitDiagnosisReq struct {
	MainBrand        string   `json:"main_brand"`
	CompetitorBrands []string `json:"competitor_brands"`
	Questions        []string `json:"questions"`
	SelectedModels   []string `json:"selected_models"`
}

// SubmitDiagnosisResp 提交诊断响应
type SubmitDiagnosisResp struct {
	ExecutionID string `json:"execution_id"`
	TotalTasks  int    `json:"total_tasks"`
}

// ExecutionListReq 执行列表请求
type ExecutionListReq struct {
	UserID   int64 `query:"user_id"`
	Page     int   `query:"page"`
	PageSize int   `query:"page_size"`
}

// DiagnosisLogic 诊断业务逻辑
type DiagnosisLogic struct {
	ctx context.Context
	svc *svc.ServiceContext
}

// NewDiagnosisLogic 创建诊断业务逻辑
func NewDiagnosisLogic(ctx context.Context) *DiagnosisLogic {
	return &DiagnosisLogic{ctx: ctx, svc: svc.Ctx}
}

// Submit 提交一次品牌诊断，立即返回执行ID，AI 调用全部异步进行
func (l *DiagnosisLogic) Submit(req *SubmitDiagnosisReq, userID int64) (*SubmitDiagnosisResp, error) {
	cfg := &types.ExecutionConfig{
		MainBrand:        utils.Trim(req.MainBrand),
		CompetitorBrands: req.CompetitorBrands,
		Questions:        req.Questions,
		SelectedModels:   req.SelectedModels,
		UserID:           userID,
	}

	executionID, err := l.svc.Engine.Start(l.ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SubmitDiagnosisResp{
		ExecutionID: executionID,
		TotalTasks:  cfg.TotalTasks(),
	}, nil
}

// GetStatus 查询执行状态，带短 TTL 缓存吸收轮询风暴
func (l *DiagnosisLogic) GetStatus(executionID string) (*progress.Snapshot, error) {
	cacheKey := "geodiag:status:" + executionID
	if l.svc.Redis != nil {
		if cached, err := redis.Get(cacheKey); err == nil && cached != "" {
			if snap, err := utils.FromJSON[progress.Snapshot](cached); err == nil {
				return &snap, nil
			}
		}
	}

	snap, err := l.svc.Engine.GetStatus(l.ctx, executionID)
	if err != nil {
		if err == types.ErrExecutionNotFound {
			return nil, apptypes.NewAppError(apptypes.ErrCodeDiagnosisNotFound, "诊断执行不存在")
		}
		return nil, err
	}

	if l.svc.Redis != nil {
		if data, err := utils.ToJSON(snap); err == nil {
			_ = redis.Set(cacheKey, data, statusCacheTTL)
		}
	}
	return snap, nil
}

// GetReport 获取诊断报告，执行中返回阶段性 stub 报告
func (l *DiagnosisLogic) GetReport(executionID string) (*types.AggregatedReport, error) {
	rep, err := l.svc.Engine.GetReport(l.ctx, executionID)
	if err != nil {
		if err == types.ErrExecutionNotFound {
			return nil, apptypes.NewAppError(apptypes.ErrCodeDiagnosisNotFound, "诊断执行不存在")
		}
		return nil, err
	}
	return rep, nil
}

// List 分页列出历史执行
func (l *DiagnosisLogic) List(req *ExecutionListReq) ([]*store.ExecutionSummary, int64, error) {
	limit := req.PageSize
	offset := (req.Page - 1) * req.PageSize
	return l.svc.Gateway.ListExecutions(l.ctx, req.UserID, limit, offset)
}

// Stop 手动停止执行
func (l *DiagnosisLogic) Stop(executionID string) error {
	err := l.svc.Engine.Stop(executionID)
	if err == types.ErrExecutionNotFound {
		return apptypes.NewAppError(apptypes.ErrCodeDiagnosisNotFound, "诊断执行不存在")
	}
	return err
}

// Export 将诊断报告导出为 Excel
func (l *DiagnosisLogic) Export(executionID string) ([]byte, string, error) {
	rep, err := l.GetReport(executionID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "品牌排名"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"排名", "品牌", "是否主品牌", "提及次数", "提及率(%)", "平均位次", "平均情感"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for row, r := range rep.Rankings {
		values := []any{r.Rank, r.Brand, r.IsMain, r.MentionCount,
			fmt.Sprintf("%.1f", r.MentionRate), fmt.Sprintf("%.2f", r.AvgRank),
			fmt.Sprintf("%.2f", r.AvgSentiment)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	const overview = "概览"
	f.NewSheet(overview)
	overviewRows := [][]any{
		{"执行ID", rep.ExecutionID},
		{"主品牌", rep.MainBrand},
		{"任务总数", rep.TotalTasks},
		{"成功响应数", rep.SuccessResponses},
		{"数据完整度(%)", fmt.Sprintf("%.1f", rep.DataCompleteness)},
		{"健康评分", fmt.Sprintf("%.1f", rep.HealthScore)},
		{"主品牌平均情感", fmt.Sprintf("%.2f", rep.AvgSentiment)},
		{"是否阶段性报告", rep.IsStub},
		{"生成时间", rep.GeneratedAt.Format(time.DateTime)},
	}
	for row, pair := range overviewRows {
		keyCell, _ := excelize.CoordinatesToCellName(1, row+1)
		valCell, _ := excelize.CoordinatesToCellName(2, row+1)
		f.SetCellValue(overview, keyCell, pair[0])
		f.SetCellValue(overview, valCell, pair[1])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("diagnosis_%s_%s.xlsx", rep.MainBrand, time.Now().Format("20060102150405"))
	return buf.Bytes(), filename, nil
}
