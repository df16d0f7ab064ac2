package model

import "time"

const TableNameTDeadLetter = "t_dead_letter"

// TDeadLetter 死信任务表
type TDeadLetter struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExecutionID  string    `gorm:"column:execution_id;type:varchar(64);not null;index:idx_dead_letter_execution_id" json:"execution_id"`
	TaskJSON     string    `gorm:"column:task_json;type:json" json:"task_json"`
	ErrorKind    string    `gorm:"column:error_kind;type:varchar(32);not null" json:"error_kind"`
	ErrorMessage string    `gorm:"column:error_message;type:text" json:"error_message"`
	Priority     int       `gorm:"column:priority;not null;default:0" json:"priority"`
	RetryCount   int       `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	Status       string    `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	HandledBy    *string   `gorm:"column:handled_by;type:varchar(64)" json:"handled_by"`
	Notes        *string   `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime(3);autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:datetime(3);autoUpdateTime" json:"updated_at"`
}

func (*TDeadLetter) TableName() string {
	return TableNameTDeadLetter
}
