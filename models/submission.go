package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is the immutable work a student hands in for a unit.
type Submission struct {
	Key       string         `gorm:"primaryKey;column:submission_key;type:varchar(64)" json:"key"`
	UnitID    string         `gorm:"column:unit_id;type:varchar(191);not null;index" json:"unit_id"`
	AuthorKey string         `gorm:"column:author_key;type:varchar(191);not null;index" json:"author_key"`
	Contents  datatypes.JSON `gorm:"column:contents" json:"contents"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Submission) TableName() string { return "submissions" }

// Review is a reviewer's immutable feedback on a submission.
type Review struct {
	Key           string         `gorm:"primaryKey;column:review_key;type:varchar(64)" json:"key"`
	ReviewStepKey string         `gorm:"column:step_key;type:varchar(80);not null;index" json:"review_step_key"`
	ReviewerKey   string         `gorm:"column:reviewer_key;type:varchar(191);not null" json:"reviewer_key"`
	Contents      datatypes.JSON `gorm:"column:contents" json:"contents"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Review) TableName() string { return "reviews" }
