package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peer-review-api/config"
	"peer-review-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReviewStore keeps review steps and summaries in SQL tables. Rows read
// inside a transaction are locked FOR UPDATE where the dialect supports it and
// every update is conditioned on the version that was read.
type GormReviewStore struct {
	db *gorm.DB
}

func NewGormReviewStore(db *gorm.DB) *GormReviewStore {
	if db == nil {
		db = config.DB
	}
	return &GormReviewStore{db: db}
}

// AutoMigrate creates or updates the review tables.
func (s *GormReviewStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.ReviewStep{}, &models.ReviewSummary{})
}

func (s *GormReviewStore) Transaction(ctx context.Context, fn func(tx ReviewTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormReviewTx{db: tx, lock: supportsRowLocking(tx)})
	})
}

func (s *GormReviewStore) GetStep(ctx context.Context, key string) (*models.ReviewStep, error) {
	return (&gormReviewTx{db: s.db.WithContext(ctx)}).GetStep(key)
}

func (s *GormReviewStore) GetSummary(ctx context.Context, key string) (*models.ReviewSummary, error) {
	return (&gormReviewTx{db: s.db.WithContext(ctx)}).GetSummary(key)
}

type stepKeyRow struct {
	Key        string    `gorm:"column:step_key"`
	ChangeDate time.Time `gorm:"column:change_date"`
}

func (s *GormReviewStore) QueryStepKeys(ctx context.Context, q ReviewStepQuery, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("%w: limit must be positive", ErrReviewInvalidInput)
	}

	query := s.db.WithContext(ctx).Model(&models.ReviewStep{}).Select("step_key, change_date")
	if q.UnitID != "" {
		query = query.Where("unit_id = ?", q.UnitID)
	}
	if q.AssignerKind != "" {
		query = query.Where("assigner_kind = ?", q.AssignerKind)
	}
	if q.State != "" {
		query = query.Where("state = ?", q.State)
	}
	if q.Removed != nil {
		query = query.Where("removed = ?", *q.Removed)
	}
	if !q.ChangedBefore.IsZero() {
		query = query.Where("change_date <= ?", q.ChangedBefore)
	}
	if cursor != "" {
		c, err := decodeStepCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		query = query.Where("(change_date > ? OR (change_date = ? AND step_key > ?))", c.ChangeDate, c.ChangeDate, c.Key)
	}

	var rows []stepKeyRow
	if err := query.Order("change_date ASC").Order("step_key ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	next := ""
	if len(rows) == limit {
		last := rows[len(rows)-1]
		next = encodeStepCursor(stepCursor{ChangeDate: last.ChangeDate, Key: last.Key})
	}
	return keys, next, nil
}

// SQLite has no row-level locks; its transactions already serialise writers.
func supportsRowLocking(db *gorm.DB) bool {
	switch db.Dialector.Name() {
	case "sqlite":
		return false
	default:
		return true
	}
}

// isDuplicateKey reports whether err is a unique-key violation. The dialector
// translates the driver error even when the *gorm.DB was opened without
// TranslateError.
func isDuplicateKey(db *gorm.DB, err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if translator, ok := db.Dialector.(gorm.ErrorTranslator); ok {
		return errors.Is(translator.Translate(err), gorm.ErrDuplicatedKey)
	}
	return false
}

type gormReviewTx struct {
	db   *gorm.DB
	lock bool
}

func (t *gormReviewTx) scoped() *gorm.DB {
	if t.lock {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

func (t *gormReviewTx) GetStep(key string) (*models.ReviewStep, error) {
	var step models.ReviewStep
	if err := t.scoped().Where("step_key = ?", key).Take(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (t *gormReviewTx) GetSummary(key string) (*models.ReviewSummary, error) {
	var summary models.ReviewSummary
	if err := t.scoped().Where("summary_key = ?", key).Take(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (t *gormReviewTx) Put(records ...ReviewRecord) ([]string, error) {
	keys := make([]string, 0, len(records))
	for _, record := range records {
		var err error
		switch r := record.(type) {
		case *models.ReviewStep:
			err = t.putStep(r)
		case *models.ReviewSummary:
			err = t.putSummary(r)
		default:
			err = fmt.Errorf("unsupported review record %T", record)
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, record.StorageKey())
	}
	return keys, nil
}

func (t *gormReviewTx) putStep(step *models.ReviewStep) error {
	if step.Version == 0 {
		step.Version = 1
		if err := t.db.Create(step).Error; err != nil {
			step.Version = 0
			if isDuplicateKey(t.db, err) {
				return fmt.Errorf("%w: review step %s already exists", ErrReviewStoreConflict, step.StorageKey())
			}
			return err
		}
		return nil
	}

	res := t.db.Model(&models.ReviewStep{}).
		Where("step_key = ? AND version = ?", step.Key, step.Version).
		Updates(map[string]interface{}{
			"state":         step.State,
			"removed":       step.Removed,
			"assigner_kind": step.AssignerKind,
			"review_key":    step.ReviewKey,
			"change_date":   step.ChangeDate,
			"version":       step.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: review step %s", ErrReviewStoreConflict, step.Key)
	}
	step.Version++
	return nil
}

func (t *gormReviewTx) putSummary(summary *models.ReviewSummary) error {
	if summary.Version == 0 {
		summary.Version = 1
		if err := t.db.Create(summary).Error; err != nil {
			summary.Version = 0
			if isDuplicateKey(t.db, err) {
				return fmt.Errorf("%w: review summary %s already exists", ErrReviewStoreConflict, summary.StorageKey())
			}
			return err
		}
		return nil
	}

	res := t.db.Model(&models.ReviewSummary{}).
		Where("summary_key = ? AND version = ?", summary.Key, summary.Version).
		Updates(map[string]interface{}{
			"assigned_count":  summary.AssignedCount,
			"completed_count": summary.CompletedCount,
			"expired_count":   summary.ExpiredCount,
			"change_date":     summary.ChangeDate,
			"version":         summary.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: review summary %s", ErrReviewStoreConflict, summary.Key)
	}
	summary.Version++
	return nil
}
