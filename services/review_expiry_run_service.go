package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peer-review-api/config"
	"peer-review-api/models"

	"gorm.io/gorm"
)

var (
	ErrReviewExpiryRunNotFound = errors.New("review expiry run not found")
)

type ReviewExpiryRunService struct {
	db *gorm.DB
}

func NewReviewExpiryRunService(db *gorm.DB) *ReviewExpiryRunService {
	if db == nil {
		db = config.DB
	}
	return &ReviewExpiryRunService{db: db}
}

func (s *ReviewExpiryRunService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.ReviewExpiryRun{})
}

func (s *ReviewExpiryRunService) Start(ctx context.Context, trigger string, windowMinutes int, unitIDs []string) (*models.ReviewExpiryRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.ReviewExpiryRun{
		TriggerSource: trigger,
		Status:        models.ReviewExpiryRunStatusRunning,
		WindowMinutes: windowMinutes,
		UnitIDs:       unitIDs,
	}
	// The run is recorded even when ctx is already done so the failure that
	// follows has a row to land on.
	createCtx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.db.WithContext(createCtx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *ReviewExpiryRunService) Get(ctx context.Context, runID uint) (*models.ReviewExpiryRun, error) {
	var run models.ReviewExpiryRun
	if err := s.db.WithContext(ctx).First(&run, runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewExpiryRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (s *ReviewExpiryRunService) MarkSuccess(ctx context.Context, runID uint, summary *ReviewExpirySummary) error {
	return s.finish(ctx, runID, models.ReviewExpiryRunStatusSuccess, summary, nil)
}

func (s *ReviewExpiryRunService) MarkFailure(ctx context.Context, runID uint, summary *ReviewExpirySummary, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(ctx, runID, models.ReviewExpiryRunStatusFailed, summary, &msg)
}

func (s *ReviewExpiryRunService) finish(ctx context.Context, runID uint, status string, summary *ReviewExpirySummary, errMsg *string) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now().UTC(),
	}
	if summary != nil {
		updates["units_processed"] = summary.UnitsProcessed
		updates["units_with_errors"] = summary.UnitsWithErrors
		updates["steps_expired"] = summary.StepsExpired
		updates["steps_failed"] = summary.StepsFailed
	}
	if errMsg != nil {
		if len(*errMsg) > 1000 {
			updates["error_message"] = fmt.Sprintf("%s...", (*errMsg)[:997])
		} else {
			updates["error_message"] = *errMsg
		}
	}
	finishCtx, cancel := cleanupContext(ctx)
	defer cancel()
	res := s.db.WithContext(finishCtx).Model(&models.ReviewExpiryRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReviewExpiryRunNotFound
	}
	return nil
}
