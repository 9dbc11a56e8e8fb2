package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"peer-review-api/models"

	"gorm.io/gorm"
)

// ReviewRecord is anything a ReviewTx can write: review steps and summaries.
type ReviewRecord interface {
	StorageKey() string
}

// ReviewTx is the view of the store inside one atomic transaction. Reads
// return nil without error when the key is absent. Put writes records in
// order and returns their keys in the same order; a record with Version 0 is
// created, any other record is updated only if its stored version still
// matches.
type ReviewTx interface {
	GetStep(key string) (*models.ReviewStep, error)
	GetSummary(key string) (*models.ReviewSummary, error)
	Put(records ...ReviewRecord) ([]string, error)
}

// ReviewStore persists review steps and summaries. Transaction commits every
// write made through tx or none of them.
type ReviewStore interface {
	Transaction(ctx context.Context, fn func(tx ReviewTx) error) error
	GetStep(ctx context.Context, key string) (*models.ReviewStep, error)
	GetSummary(ctx context.Context, key string) (*models.ReviewSummary, error)
	// QueryStepKeys returns at most limit step keys matching q ordered by
	// change date then key, ascending. The returned cursor resumes after the
	// last key; it is empty once a short page has been returned.
	QueryStepKeys(ctx context.Context, q ReviewStepQuery, cursor string, limit int) ([]string, string, error)
}

// ReviewStepQuery filters review steps. Zero-valued fields are not filtered.
type ReviewStepQuery struct {
	UnitID        string
	AssignerKind  models.AssignerKind
	State         models.ReviewState
	Removed       *bool
	ChangedBefore time.Time // change_date <= ChangedBefore
}

func (q ReviewStepQuery) matches(step *models.ReviewStep) bool {
	if q.UnitID != "" && step.UnitID != q.UnitID {
		return false
	}
	if q.AssignerKind != "" && step.AssignerKind != q.AssignerKind {
		return false
	}
	if q.State != "" && step.State != q.State {
		return false
	}
	if q.Removed != nil && step.Removed != *q.Removed {
		return false
	}
	if !q.ChangedBefore.IsZero() && step.ChangeDate.After(q.ChangedBefore) {
		return false
	}
	return true
}

type stepCursor struct {
	ChangeDate time.Time `json:"d"`
	Key        string    `json:"k"`
}

func (c stepCursor) after(step *models.ReviewStep) bool {
	if step.ChangeDate.Equal(c.ChangeDate) {
		return step.Key > c.Key
	}
	return step.ChangeDate.After(c.ChangeDate)
}

func encodeStepCursor(c stepCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeStepCursor(cursor string) (stepCursor, error) {
	var c stepCursor
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return c, fmt.Errorf("%w: malformed cursor: %v", ErrReviewInvalidInput, err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: malformed cursor: %v", ErrReviewInvalidInput, err)
	}
	return c, nil
}

// Review store kinds accepted by NewReviewStore.
const (
	ReviewStoreKindGorm   = "gorm"
	ReviewStoreKindMemory = "memory"
)

// NewReviewStore picks the store from kind, case-insensitively. An empty kind
// selects the gorm store over db; "memory" keeps everything in the process and
// loses it on exit.
func NewReviewStore(kind string, db *gorm.DB) (ReviewStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ReviewStoreKindGorm:
		return NewGormReviewStore(db), nil
	case ReviewStoreKindMemory:
		return NewMemoryReviewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported review store %q", kind)
	}
}
