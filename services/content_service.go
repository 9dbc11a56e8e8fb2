package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"peer-review-api/config"
	"peer-review-api/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentService stores submission and review contents. Both are written once
// and never modified; the review manager only refers to them by key.
type ContentService struct {
	db *gorm.DB
}

func NewContentService(db *gorm.DB) *ContentService {
	if db == nil {
		db = config.DB
	}
	return &ContentService{db: db}
}

func (s *ContentService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Submission{}, &models.Review{})
}

func (s *ContentService) CreateSubmission(ctx context.Context, unitID, authorKey string, contents json.RawMessage) (*models.Submission, error) {
	if err := requireIdentity(map[string]string{"unit_id": unitID, "author_key": authorKey}); err != nil {
		return nil, err
	}
	if len(contents) > 0 && !json.Valid(contents) {
		return nil, fmt.Errorf("%w: contents must be valid JSON", ErrReviewInvalidInput)
	}

	submission := &models.Submission{
		Key:       uuid.NewString(),
		UnitID:    strings.TrimSpace(unitID),
		AuthorKey: strings.TrimSpace(authorKey),
		Contents:  datatypes.JSON(contents),
	}
	if err := s.db.WithContext(ctx).Create(submission).Error; err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *ContentService) GetSubmission(ctx context.Context, key string) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).Where("submission_key = ?", key).Take(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReviewNotFoundError{Entity: "submission", Key: key}
		}
		return nil, err
	}
	return &submission, nil
}

// CreateReview stores the contents a reviewer wrote for an existing,
// non-removed, assigned review step. It does not touch the step: linking
// ReviewStep.ReviewKey and completing the step belong to the review manager.
func (s *ContentService) CreateReview(ctx context.Context, store ReviewStore, stepKey string, contents json.RawMessage) (*models.Review, error) {
	if err := requireIdentity(map[string]string{"review_step_key": stepKey}); err != nil {
		return nil, err
	}
	if len(contents) > 0 && !json.Valid(contents) {
		return nil, fmt.Errorf("%w: contents must be valid JSON", ErrReviewInvalidInput)
	}

	step, err := store.GetStep(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, &ReviewNotFoundError{Entity: "review step", Key: stepKey}
	}
	if step.Removed {
		return nil, &ReviewRemovedError{Key: stepKey, Removed: true}
	}
	if step.State != models.ReviewStateAssigned {
		return nil, fmt.Errorf("%w: review step %s is %s", ErrReviewInvalidTransition, stepKey, step.State)
	}

	review := &models.Review{
		Key:           uuid.NewString(),
		ReviewStepKey: step.Key,
		ReviewerKey:   step.ReviewerKey,
		Contents:      datatypes.JSON(contents),
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ContentService) GetReview(ctx context.Context, key string) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Where("review_key = ?", key).Take(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReviewNotFoundError{Entity: "review", Key: key}
		}
		return nil, err
	}
	return &review, nil
}
