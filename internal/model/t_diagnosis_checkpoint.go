package model

import "time"

const TableNameTDiagnosisCheckpoint = "t_diagnosis_checkpoint"

// TDiagnosisCheckpoint 诊断检查点表，追加写入后翻转 latest 指针
type TDiagnosisCheckpoint struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExecutionID  string    `gorm:"column:execution_id;type:varchar(64);not null;index:idx_diag_checkpoint_execution_id" json:"execution_id"`
	Seq          int       `gorm:"column:seq;not null;default:0" json:"seq"`
	Status       string    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Completed    int       `gorm:"column:completed;not null;default:0" json:"completed"`
	Succeeded    int       `gorm:"column:succeeded;not null;default:0" json:"succeeded"`
	Failed       int       `gorm:"column:failed;not null;default:0" json:"failed"`
	SnapshotJSON string    `gorm:"column:snapshot_json;type:json" json:"snapshot_json"`
	IsLatest     bool      `gorm:"column:is_latest;not null;default:0;index:idx_diag_checkpoint_latest" json:"is_latest"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime(3);autoCreateTime" json:"created_at"`
}

func (*TDiagnosisCheckpoint) TableName() string {
	return TableNameTDiagnosisCheckpoint
}
