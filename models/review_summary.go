package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReviewSummary aggregates the non-removed review steps of one submission by
// state.
type ReviewSummary struct {
	Key            string    `gorm:"primaryKey;column:summary_key;type:varchar(80)" json:"key"`
	UnitID         string    `gorm:"column:unit_id;type:varchar(191);not null;index" json:"unit_id"`
	SubmissionKey  string    `gorm:"column:submission_key;type:varchar(191);not null" json:"submission_key"`
	RevieweeKey    string    `gorm:"column:reviewee_key;type:varchar(191);not null" json:"reviewee_key"`
	AssignedCount  int64     `gorm:"column:assigned_count;not null;default:0" json:"assigned_count"`
	CompletedCount int64     `gorm:"column:completed_count;not null;default:0" json:"completed_count"`
	ExpiredCount   int64     `gorm:"column:expired_count;not null;default:0" json:"expired_count"`
	Version        int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreateDate     time.Time `gorm:"column:create_date;not null" json:"create_date"`
	ChangeDate     time.Time `gorm:"column:change_date;not null" json:"change_date"`
}

func (ReviewSummary) TableName() string { return "review_summaries" }

func (s *ReviewSummary) StorageKey() string {
	if s.Key == "" {
		s.Key = ReviewSummaryKey(s.UnitID, s.SubmissionKey, s.RevieweeKey)
	}
	return s.Key
}

func (s *ReviewSummary) BeforeCreate(tx *gorm.DB) error {
	s.StorageKey()
	return nil
}

func (s *ReviewSummary) counter(state ReviewState) (*int64, error) {
	switch state {
	case ReviewStateAssigned:
		return &s.AssignedCount, nil
	case ReviewStateCompleted:
		return &s.CompletedCount, nil
	case ReviewStateExpired:
		return &s.ExpiredCount, nil
	}
	return nil, fmt.Errorf("unknown review state %q", state)
}

// Count returns the number of non-removed steps in state.
func (s *ReviewSummary) Count(state ReviewState) int64 {
	c, err := s.counter(state)
	if err != nil {
		return 0
	}
	return *c
}

// Counts returns every per-state count keyed by state.
func (s *ReviewSummary) Counts() map[ReviewState]int64 {
	out := make(map[ReviewState]int64, len(ReviewStates))
	for _, state := range ReviewStates {
		out[state] = s.Count(state)
	}
	return out
}

// Total is the number of non-removed steps referencing the summary.
func (s *ReviewSummary) Total() int64 {
	return s.AssignedCount + s.CompletedCount + s.ExpiredCount
}

func (s *ReviewSummary) IncrementCount(state ReviewState) error {
	c, err := s.counter(state)
	if err != nil {
		return err
	}
	*c++
	return nil
}

// DecrementCount fails instead of letting a count go negative.
func (s *ReviewSummary) DecrementCount(state ReviewState) error {
	c, err := s.counter(state)
	if err != nil {
		return err
	}
	if *c <= 0 {
		return fmt.Errorf("%s count of summary %s is already %d", state, s.Key, *c)
	}
	*c--
	return nil
}
