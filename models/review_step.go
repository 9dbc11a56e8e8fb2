package models

import (
	"time"

	"gorm.io/gorm"
)

// ReviewStep is one reviewer's assignment to one submission within a unit.
// Rows are never deleted; Removed soft-deletes them instead.
type ReviewStep struct {
	Key              string       `gorm:"primaryKey;column:step_key;type:varchar(80)" json:"key"`
	UnitID           string       `gorm:"column:unit_id;type:varchar(191);not null;index:idx_review_steps_expiry,priority:1" json:"unit_id"`
	SubmissionKey    string       `gorm:"column:submission_key;type:varchar(191);not null" json:"submission_key"`
	RevieweeKey      string       `gorm:"column:reviewee_key;type:varchar(191);not null" json:"reviewee_key"`
	ReviewerKey      string       `gorm:"column:reviewer_key;type:varchar(191);not null;index" json:"reviewer_key"`
	State            ReviewState  `gorm:"column:state;type:varchar(16);not null;index:idx_review_steps_expiry,priority:3" json:"state"`
	Removed          bool         `gorm:"column:removed;not null;default:false;index:idx_review_steps_expiry,priority:4" json:"removed"`
	AssignerKind     AssignerKind `gorm:"column:assigner_kind;type:varchar(16);not null;index:idx_review_steps_expiry,priority:2" json:"assigner_kind"`
	ReviewKey        *string      `gorm:"column:review_key;type:varchar(64)" json:"review_key,omitempty"`
	ReviewSummaryKey string       `gorm:"column:review_summary_key;type:varchar(80);not null;index" json:"review_summary_key"`
	Version          int64        `gorm:"column:version;not null;default:0" json:"version"`
	CreateDate       time.Time    `gorm:"column:create_date;not null" json:"create_date"`
	ChangeDate       time.Time    `gorm:"column:change_date;not null;index:idx_review_steps_expiry,priority:5" json:"change_date"`
}

func (ReviewStep) TableName() string { return "review_steps" }

// StorageKey returns the key the step is stored under, deriving it from the
// natural identity when it has not been assigned yet.
func (s *ReviewStep) StorageKey() string {
	if s.Key == "" {
		s.Key = ReviewStepKey(s.UnitID, s.SubmissionKey, s.RevieweeKey, s.ReviewerKey)
	}
	return s.Key
}

func (s *ReviewStep) BeforeCreate(tx *gorm.DB) error {
	s.StorageKey()
	return nil
}

// Active reports whether the step counts toward its summary.
func (s *ReviewStep) Active() bool { return !s.Removed }
