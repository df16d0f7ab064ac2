package model

import "time"

const TableNameTDiagnosisExecution = "t_diagnosis_execution"

// TDiagnosisExecution 诊断执行记录表
type TDiagnosisExecution struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExecutionID string     `gorm:"column:execution_id;type:varchar(64);not null;uniqueIndex:uk_diag_execution_id" json:"execution_id"`
	UserID      int64      `gorm:"column:user_id;not null;index:idx_diag_execution_user_id;default:0" json:"user_id"`
	MainBrand   string     `gorm:"column:main_brand;type:varchar(128);not null" json:"main_brand"`
	Status      string     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ConfigJSON  string     `gorm:"column:config_json;type:json" json:"config_json"`
	TotalTasks  int        `gorm:"column:total_tasks;not null;default:0" json:"total_tasks"`
	Completed   int        `gorm:"column:completed;not null;default:0" json:"completed"`
	Succeeded   int        `gorm:"column:succeeded;not null;default:0" json:"succeeded"`
	Failed      int        `gorm:"column:failed;not null;default:0" json:"failed"`
	ErrorMsg    *string    `gorm:"column:error_msg;type:text" json:"error_msg"`
	ReportJSON  *string    `gorm:"column:report_json;type:json" json:"report_json"`
	StartTime   *time.Time `gorm:"column:start_time;type:datetime(3)" json:"start_time"`
	EndTime     *time.Time `gorm:"column:end_time;type:datetime(3)" json:"end_time"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:datetime(3);autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:datetime(3);autoUpdateTime" json:"updated_at"`
}

func (*TDiagnosisExecution) TableName() string {
	return TableNameTDiagnosisExecution
}
