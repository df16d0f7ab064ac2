package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/glensun810-ai/geodiag/internal/model"
	"github.com/glensun810-ai/geodiag/pkg/types"
	"github.com/glensun810-ai/geodiag/pkg/utils"
)

// GormGateway 基于 gorm 的持久化实现
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway 创建 gorm 持久化网关
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// AutoMigrate 建表
func (g *GormGateway) AutoMigrate() error {
	return g.db.AutoMigrate(
		&model.TDiagnosisExecution{},
		&model.TDiagnosisCheckpoint{},
		&model.TDeadLetter{},
	)
}

// CreateExecution 登记一次新执行
func (g *GormGateway) CreateExecution(ctx context.Context, executionID string, userID int64, cfg *types.ExecutionConfig) error {
	cfgJSON, err := utils.ToJSON(cfg)
	if err != nil {
		return fmt.Errorf("序列化执行配置失败: %w", err)
	}
	rec := &model.TDiagnosisExecution{
		ExecutionID: executionID,
		UserID:      userID,
		MainBrand:   cfg.MainBrand,
		Status:      string(types.StatusInitializing),
		ConfigJSON:  cfgJSON,
		TotalTasks:  cfg.TotalTasks(),
	}
	return g.db.WithContext(ctx).Create(rec).Error
}

// SaveCheckpoint 先追加新快照行，再在同一事务内翻转 latest 指针，
// 保证任何时刻恢复读取到的都是一份完整快照。
func (g *GormGateway) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	snapshot := ""
	if cp.Report != nil {
		s, err := utils.ToJSON(cp.Report)
		if err != nil {
			return fmt.Errorf("序列化检查点快照失败: %w", err)
		}
		snapshot = s
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &model.TDiagnosisCheckpoint{
			ExecutionID:  cp.ExecutionID,
			Seq:          cp.Seq,
			Status:       string(cp.Status),
			Completed:    cp.Completed,
			Succeeded:    cp.Succeeded,
			Failed:       cp.Failed,
			SnapshotJSON: snapshot,
			IsLatest:     false,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.TDiagnosisCheckpoint{}).
			Where("execution_id = ? AND is_latest = ?", cp.ExecutionID, true).
			Update("is_latest", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.TDiagnosisCheckpoint{}).
			Where("id = ?", row.ID).
			Update("is_latest", true).Error; err != nil {
			return err
		}
		// 执行主表的计数随检查点同步推进
		return tx.Model(&model.TDiagnosisExecution{}).
			Where("execution_id = ?", cp.ExecutionID).
			Updates(map[string]any{
				"status":    string(cp.Status),
				"completed": cp.Completed,
				"succeeded": cp.Succeeded,
				"failed":    cp.Failed,
			}).Error
	})
}

// SaveFinalReport 写入终态与最终报告
func (g *GormGateway) SaveFinalReport(ctx context.Context, st *types.ExecutionState, report *types.AggregatedReport) error {
	updates := map[string]any{
		"status":    string(st.Status),
		"completed": st.Completed,
		"succeeded": st.Succeeded,
		"failed":    st.Failed,
		"end_time":  st.EndTime,
	}
	if st.Error != "" {
		updates["error_msg"] = st.Error
	}
	if report != nil {
		reportJSON, err := utils.ToJSON(report)
		if err != nil {
			return fmt.Errorf("序列化最终报告失败: %w", err)
		}
		updates["report_json"] = reportJSON
	}
	return g.db.WithContext(ctx).Model(&model.TDiagnosisExecution{}).
		Where("execution_id = ?", st.ExecutionID).
		Updates(updates).Error
}

// LoadState 恢复一次执行的最新状态
func (g *GormGateway) LoadState(ctx context.Context, executionID string) (*types.ExecutionState, error) {
	var rec model.TDiagnosisExecution
	err := g.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrExecutionNotFound
		}
		return nil, err
	}

	st := &types.ExecutionState{
		ExecutionID: rec.ExecutionID,
		UserID:      rec.UserID,
		Status:      types.Status(rec.Status),
		Completed:   rec.Completed,
		Total:       rec.TotalTasks,
		Succeeded:   rec.Succeeded,
		Failed:      rec.Failed,
		EndTime:     rec.EndTime,
	}
	if rec.StartTime != nil {
		st.StartTime = *rec.StartTime
	} else {
		st.StartTime = rec.CreatedAt
	}
	if rec.ErrorMsg != nil {
		st.Error = *rec.ErrorMsg
	}
	st.ShouldStopPolling = st.Status.IsTerminal()
	return st, nil
}

// LoadReport 优先读取最终报告，缺失时回退到最新检查点快照
func (g *GormGateway) LoadReport(ctx context.Context, executionID string) (*types.AggregatedReport, error) {
	var rec model.TDiagnosisExecution
	err := g.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrExecutionNotFound
		}
		return nil, err
	}
	if rec.ReportJSON != nil && *rec.ReportJSON != "" {
		rep, err := utils.FromJSON[types.AggregatedReport](*rec.ReportJSON)
		if err != nil {
			return nil, err
		}
		return &rep, nil
	}

	var cp model.TDiagnosisCheckpoint
	err = g.db.WithContext(ctx).
		Where("execution_id = ? AND is_latest = ?", executionID, true).
		First(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrExecutionNotFound
		}
		return nil, err
	}
	if cp.SnapshotJSON == "" {
		return nil, types.ErrExecutionNotFound
	}
	rep, err := utils.FromJSON[types.AggregatedReport](cp.SnapshotJSON)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// AppendDeadLetter 持久化一条死信
func (g *GormGateway) AppendDeadLetter(entry *types.DeadLetterEntry) error {
	taskJSON, err := utils.ToJSON(entry.Task)
	if err != nil {
		return fmt.Errorf("序列化死信任务失败: %w", err)
	}
	rec := &model.TDeadLetter{
		ExecutionID:  entry.ExecutionID,
		TaskJSON:     taskJSON,
		ErrorKind:    string(entry.ErrorKind),
		ErrorMessage: entry.ErrorMessage,
		Priority:     entry.Priority,
		RetryCount:   entry.RetryCount,
		Status:       string(entry.Status),
	}
	return g.db.Create(rec).Error
}

// ListExecutions 按用户分页列出执行
func (g *GormGateway) ListExecutions(ctx context.Context, userID int64, limit, offset int) ([]*ExecutionSummary, int64, error) {
	query := g.db.WithContext(ctx).Model(&model.TDiagnosisExecution{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.TDiagnosisExecution
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*ExecutionSummary, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, &ExecutionSummary{
			ExecutionID: r.ExecutionID,
			UserID:      r.UserID,
			MainBrand:   r.MainBrand,
			Status:      r.Status,
			TotalTasks:  r.TotalTasks,
			Completed:   r.Completed,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, total, nil
}
