package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"peer-review-api/models"
)

// MemoryReviewStore is an in-process ReviewStore. Transactions run one at a
// time and stage their writes until fn returns nil.
type MemoryReviewStore struct {
	mu        sync.Mutex
	steps     map[string]models.ReviewStep
	summaries map[string]models.ReviewSummary
}

func NewMemoryReviewStore() *MemoryReviewStore {
	return &MemoryReviewStore{
		steps:     make(map[string]models.ReviewStep),
		summaries: make(map[string]models.ReviewSummary),
	}
}

func (s *MemoryReviewStore) Transaction(ctx context.Context, fn func(tx ReviewTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryReviewTx{
		store:     s,
		steps:     make(map[string]models.ReviewStep),
		summaries: make(map[string]models.ReviewSummary),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for key, step := range tx.steps {
		s.steps[key] = step
	}
	for key, summary := range tx.summaries {
		s.summaries[key] = summary
	}
	return nil
}

func (s *MemoryReviewStore) GetStep(ctx context.Context, key string) (*models.ReviewStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[key]
	if !ok {
		return nil, nil
	}
	return &step, nil
}

func (s *MemoryReviewStore) GetSummary(ctx context.Context, key string) (*models.ReviewSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[key]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (s *MemoryReviewStore) QueryStepKeys(ctx context.Context, q ReviewStepQuery, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("%w: limit must be positive", ErrReviewInvalidInput)
	}
	var after *stepCursor
	if cursor != "" {
		c, err := decodeStepCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		after = &c
	}

	s.mu.Lock()
	matched := make([]models.ReviewStep, 0)
	for _, step := range s.steps {
		step := step
		if !q.matches(&step) {
			continue
		}
		if after != nil && !after.after(&step) {
			continue
		}
		matched = append(matched, step)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ChangeDate.Equal(matched[j].ChangeDate) {
			return matched[i].Key < matched[j].Key
		}
		return matched[i].ChangeDate.Before(matched[j].ChangeDate)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	keys := make([]string, 0, len(matched))
	for _, step := range matched {
		keys = append(keys, step.Key)
	}
	next := ""
	if len(matched) == limit {
		last := matched[len(matched)-1]
		next = encodeStepCursor(stepCursor{ChangeDate: last.ChangeDate, Key: last.Key})
	}
	return keys, next, nil
}

type memoryReviewTx struct {
	store     *MemoryReviewStore
	steps     map[string]models.ReviewStep
	summaries map[string]models.ReviewSummary
}

func (t *memoryReviewTx) currentStep(key string) (models.ReviewStep, bool) {
	if step, ok := t.steps[key]; ok {
		return step, true
	}
	step, ok := t.store.steps[key]
	return step, ok
}

func (t *memoryReviewTx) currentSummary(key string) (models.ReviewSummary, bool) {
	if summary, ok := t.summaries[key]; ok {
		return summary, true
	}
	summary, ok := t.store.summaries[key]
	return summary, ok
}

func (t *memoryReviewTx) GetStep(key string) (*models.ReviewStep, error) {
	step, ok := t.currentStep(key)
	if !ok {
		return nil, nil
	}
	return &step, nil
}

func (t *memoryReviewTx) GetSummary(key string) (*models.ReviewSummary, error) {
	summary, ok := t.currentSummary(key)
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (t *memoryReviewTx) Put(records ...ReviewRecord) ([]string, error) {
	keys := make([]string, 0, len(records))
	for _, record := range records {
		key := record.StorageKey()
		switch r := record.(type) {
		case *models.ReviewStep:
			current, exists := t.currentStep(key)
			if err := checkVersion(key, exists, current.Version, r.Version); err != nil {
				return nil, err
			}
			r.Version++
			t.steps[key] = *r
		case *models.ReviewSummary:
			current, exists := t.currentSummary(key)
			if err := checkVersion(key, exists, current.Version, r.Version); err != nil {
				return nil, err
			}
			r.Version++
			t.summaries[key] = *r
		default:
			return nil, fmt.Errorf("unsupported review record %T", record)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func checkVersion(key string, exists bool, stored, written int64) error {
	switch {
	case written == 0 && exists:
		return fmt.Errorf("%w: %s already exists", ErrReviewStoreConflict, key)
	case written != 0 && (!exists || stored != written):
		return fmt.Errorf("%w: %s", ErrReviewStoreConflict, key)
	}
	return nil
}
