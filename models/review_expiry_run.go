package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReviewExpiryRunStatusRunning = "running"
	ReviewExpiryRunStatusSuccess = "success"
	ReviewExpiryRunStatusFailed  = "failed"
)

type ReviewExpiryRun struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	TriggerSource string                      `json:"trigger_source" gorm:"type:varchar(64);not null"`
	Status        string                      `json:"status" gorm:"type:varchar(16);not null;default:'running'"`
	WindowMinutes int                         `json:"window_minutes" gorm:"column:window_minutes;not null;default:0"`
	UnitIDs       datatypes.JSONSlice[string] `json:"unit_ids" gorm:"column:unit_ids"`
	ErrorMessage  *string                     `json:"error_message" gorm:"type:text"`
	StartedAt     time.Time                   `json:"started_at" gorm:"column:started_at;autoCreateTime"`
	FinishedAt    *time.Time                  `json:"finished_at" gorm:"column:finished_at"`

	UnitsProcessed  uint `json:"units_processed" gorm:"column:units_processed;not null;default:0"`
	UnitsWithErrors uint `json:"units_with_errors" gorm:"column:units_with_errors;not null;default:0"`
	StepsExpired    uint `json:"steps_expired" gorm:"column:steps_expired;not null;default:0"`
	StepsFailed     uint `json:"steps_failed" gorm:"column:steps_failed;not null;default:0"`

	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"column:deleted_at;index"`
}

func (ReviewExpiryRun) TableName() string { return "review_expiry_runs" }
