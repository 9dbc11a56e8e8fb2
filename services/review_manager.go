package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peer-review-api/models"
)

// ExpiryPageSize is the number of step keys the expiry mapper loads per page.
const ExpiryPageSize = 100

const maxTransactionAttempts = 3

// ReviewManager is the only writer of review steps and summaries. Every
// operation that changes a step's state or removed flag updates the matching
// summary count in the same transaction.
type ReviewManager struct {
	store    ReviewStore
	counters CounterSink
	now      func() time.Time
}

func NewReviewManager(store ReviewStore, counters CounterSink) *ReviewManager {
	if counters == nil {
		counters = discardCounters{}
	}
	return &ReviewManager{
		store:    store,
		counters: counters,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for change dates and expiry windows.
func (m *ReviewManager) WithClock(now func() time.Time) *ReviewManager {
	m.now = now
	return m
}

func (m *ReviewManager) Store() ReviewStore { return m.store }

func (m *ReviewManager) inc(name string) { m.counters.Increment(name, 1) }

// AddReviewer assigns reviewerKey to the submission. A missing step is
// created; an expired or removed step is reactivated. Adding a reviewer to a
// step that is already assigned or completed fails with a transition error.
// The step always ends up owned by a human assigner.
func (m *ReviewManager) AddReviewer(ctx context.Context, unitID, submissionKey, revieweeKey, reviewerKey string) (string, error) {
	m.inc(CounterAddReviewerStart)
	key, err := m.addReviewer(ctx, unitID, submissionKey, revieweeKey, reviewerKey)
	if err != nil {
		m.inc(CounterAddReviewerFailed)
		return "", err
	}
	m.inc(CounterAddReviewerSuccess)
	return key, nil
}

func (m *ReviewManager) addReviewer(ctx context.Context, unitID, submissionKey, revieweeKey, reviewerKey string) (string, error) {
	if err := requireIdentity(map[string]string{
		"unit_id":        unitID,
		"submission_key": submissionKey,
		"reviewee_key":   revieweeKey,
		"reviewer_key":   reviewerKey,
	}); err != nil {
		return "", err
	}

	stepKey := models.ReviewStepKey(unitID, submissionKey, revieweeKey, reviewerKey)
	var (
		written string
		events  []string
	)
	err := m.transaction(ctx, func(tx ReviewTx) error {
		events = events[:0]
		step, err := tx.GetStep(stepKey)
		if err != nil {
			return err
		}
		if step == nil {
			written, err = m.addNewReviewer(tx, unitID, submissionKey, revieweeKey, reviewerKey, &events)
		} else {
			written, err = m.addReviewerUpdateStep(tx, step, &events)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	for _, name := range events {
		m.inc(name)
	}
	return written, nil
}

func (m *ReviewManager) addNewReviewer(tx ReviewTx, unitID, submissionKey, revieweeKey, reviewerKey string, events *[]string) (string, error) {
	now := m.now()
	// The key is synthesized here and checked against the written one instead
	// of being read back after the write.
	summaryKey := models.ReviewSummaryKey(unitID, submissionKey, revieweeKey)

	summary, err := tx.GetSummary(summaryKey)
	if err != nil {
		return "", err
	}
	if summary == nil {
		summary = &models.ReviewSummary{
			UnitID:        unitID,
			SubmissionKey: submissionKey,
			RevieweeKey:   revieweeKey,
			CreateDate:    now,
		}
	}
	if err := summary.IncrementCount(models.ReviewStateAssigned); err != nil {
		return "", &ReviewConsistencyError{Key: summaryKey, Reason: "cannot count new step", Err: err}
	}
	summary.ChangeDate = now

	step := &models.ReviewStep{
		UnitID:           unitID,
		SubmissionKey:    submissionKey,
		RevieweeKey:      revieweeKey,
		ReviewerKey:      reviewerKey,
		State:            models.ReviewStateAssigned,
		AssignerKind:     models.AssignerKindHuman,
		ReviewSummaryKey: summaryKey,
		CreateDate:       now,
		ChangeDate:       now,
	}

	keys, err := tx.Put(step, summary)
	if err != nil {
		return "", err
	}
	if keys[1] != summaryKey {
		m.inc(CounterAddReviewerBadSummaryKey)
		return "", &ReviewConsistencyError{
			Key:    summaryKey,
			Reason: fmt.Sprintf("synthesized review summary key does not match written key %s", keys[1]),
		}
	}

	*events = append(*events, CounterAddReviewerCreateReviewStep)
	return keys[0], nil
}

func (m *ReviewManager) addReviewerUpdateStep(tx ReviewTx, step *models.ReviewStep, events *[]string) (string, error) {
	summary, err := tx.GetSummary(step.ReviewSummaryKey)
	if err != nil {
		return "", err
	}
	if summary == nil {
		m.inc(CounterAddReviewerBadSummaryKey)
		return "", &ReviewConsistencyError{
			Key:    step.Key,
			Reason: fmt.Sprintf("step references missing review summary %s", step.ReviewSummaryKey),
		}
	}

	if !step.Removed {
		switch step.State {
		case models.ReviewStateExpired:
			if err := moveCount(summary, models.ReviewStateExpired, models.ReviewStateAssigned); err != nil {
				return "", err
			}
			step.State = models.ReviewStateAssigned
			*events = append(*events, CounterAddReviewerExpiredStepReassigned)
		default:
			m.inc(CounterAddReviewerUnremovedStepFailed)
			return "", &ReviewTransitionError{Key: step.Key, Before: step.State, After: models.ReviewStateAssigned}
		}
	} else {
		step.Removed = false
		*events = append(*events, CounterAddReviewerRemovedStepUnremoved)

		// A removed step is not counted anywhere, so reactivating it only adds
		// to the count of the state it resumes in; decrementing expired here
		// would leave the summary out of step with its active steps.
		if step.State == models.ReviewStateExpired {
			step.State = models.ReviewStateAssigned
			*events = append(*events, CounterAddReviewerExpiredStepReassigned)
		}
		if err := summary.IncrementCount(step.State); err != nil {
			return "", &ReviewConsistencyError{Key: summary.Key, Reason: "cannot count unremoved step", Err: err}
		}
	}

	if step.AssignerKind != models.AssignerKindHuman {
		step.AssignerKind = models.AssignerKindHuman
		*events = append(*events, CounterAddReviewerSetAssignerKindHuman)
	}

	now := m.now()
	step.ChangeDate = now
	summary.ChangeDate = now

	keys, err := tx.Put(step, summary)
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// DeleteReviewer marks the step removed and drops it from its summary count.
// Steps are never physically deleted, and deleting a removed step is an error.
func (m *ReviewManager) DeleteReviewer(ctx context.Context, stepKey string) (string, error) {
	m.inc(CounterDeleteReviewerStart)
	key, err := m.markReviewStepRemoved(ctx, stepKey)
	if err != nil {
		m.inc(CounterDeleteReviewerFailed)
		return "", err
	}
	m.inc(CounterDeleteReviewerSuccess)
	return key, nil
}

func (m *ReviewManager) markReviewStepRemoved(ctx context.Context, stepKey string) (string, error) {
	if err := requireIdentity(map[string]string{"review_step_key": stepKey}); err != nil {
		return "", err
	}

	var written string
	err := m.transaction(ctx, func(tx ReviewTx) error {
		step, err := tx.GetStep(stepKey)
		if err != nil {
			return err
		}
		if step == nil {
			m.inc(CounterDeleteReviewerStepMiss)
			return &ReviewNotFoundError{Entity: "review step", Key: stepKey}
		}
		if step.Removed {
			m.inc(CounterDeleteReviewerAlreadyRemoved)
			return &ReviewRemovedError{Key: stepKey, Removed: step.Removed}
		}

		summary, err := tx.GetSummary(step.ReviewSummaryKey)
		if err != nil {
			return err
		}
		if summary == nil {
			m.inc(CounterDeleteReviewerSummaryMiss)
			return &ReviewNotFoundError{Entity: "review summary", Key: step.ReviewSummaryKey}
		}

		step.Removed = true
		if err := summary.DecrementCount(step.State); err != nil {
			return &ReviewConsistencyError{Key: summary.Key, Reason: "cannot uncount removed step", Err: err}
		}
		now := m.now()
		step.ChangeDate = now
		summary.ChangeDate = now

		keys, err := tx.Put(step, summary)
		if err != nil {
			return err
		}
		written = keys[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return written, nil
}

// ExpireReview moves an assigned, non-removed step to expired.
func (m *ReviewManager) ExpireReview(ctx context.Context, stepKey string) (string, error) {
	m.inc(CounterExpireReviewStart)
	key, err := m.transitionStateToExpired(ctx, stepKey)
	if err != nil {
		m.inc(CounterExpireReviewFailed)
		return "", err
	}
	m.inc(CounterExpireReviewSuccess)
	return key, nil
}

func (m *ReviewManager) transitionStateToExpired(ctx context.Context, stepKey string) (string, error) {
	if err := requireIdentity(map[string]string{"review_step_key": stepKey}); err != nil {
		return "", err
	}

	var written string
	err := m.transaction(ctx, func(tx ReviewTx) error {
		step, err := tx.GetStep(stepKey)
		if err != nil {
			return err
		}
		if step == nil {
			m.inc(CounterExpireReviewStepMiss)
			return &ReviewNotFoundError{Entity: "review step", Key: stepKey}
		}
		if step.Removed {
			m.inc(CounterExpireReviewCannotTransition)
			return &ReviewRemovedError{Key: stepKey, Removed: step.Removed}
		}
		if step.State == models.ReviewStateCompleted || step.State == models.ReviewStateExpired {
			m.inc(CounterExpireReviewCannotTransition)
			return &ReviewTransitionError{Key: stepKey, Before: step.State, After: models.ReviewStateExpired}
		}

		summary, err := tx.GetSummary(step.ReviewSummaryKey)
		if err != nil {
			return err
		}
		if summary == nil {
			m.inc(CounterExpireReviewSummaryMiss)
			return &ReviewNotFoundError{Entity: "review summary", Key: step.ReviewSummaryKey}
		}

		if err := moveCount(summary, step.State, models.ReviewStateExpired); err != nil {
			return err
		}
		step.State = models.ReviewStateExpired
		now := m.now()
		step.ChangeDate = now
		summary.ChangeDate = now

		keys, err := tx.Put(step, summary)
		if err != nil {
			return err
		}
		written = keys[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return written, nil
}

// ExpiryQuery selects machine-assigned, active, assigned steps of unitID
// whose last change is at least windowMinutes old, oldest first.
func (m *ReviewManager) ExpiryQuery(windowMinutes int, unitID string) ReviewStepQuery {
	removed := false
	return ReviewStepQuery{
		UnitID:        unitID,
		AssignerKind:  models.AssignerKindAuto,
		State:         models.ReviewStateAssigned,
		Removed:       &removed,
		ChangedBefore: m.now().Add(-time.Duration(windowMinutes) * time.Minute),
	}
}

// ExpireOldReviewsForUnit expires every step returned by ExpiryQuery. A step
// that fails to expire is skipped and reported in failed; it either changed
// since the query ran or will be picked up by the next run. err is set only
// when the query itself fails or ctx ends between pages, in which case the
// keys handled so far are still returned.
func (m *ReviewManager) ExpireOldReviewsForUnit(ctx context.Context, windowMinutes int, unitID string) (expired []string, failed []string, err error) {
	if windowMinutes < 0 {
		return nil, nil, fmt.Errorf("%w: review window must not be negative", ErrReviewInvalidInput)
	}
	if err := requireIdentity(map[string]string{"unit_id": unitID}); err != nil {
		return nil, nil, err
	}

	m.inc(CounterExpireOldReviewsForUnitStart)
	expired = []string{}
	failed = []string{}

	mapper := NewReviewStepKeyMapper(m.store, m.ExpiryQuery(windowMinutes, unitID), ExpiryPageSize)
	_, err = mapper.Run(ctx, func(stepKey string) {
		key, expireErr := m.ExpireReview(ctx, stepKey)
		if expireErr != nil {
			m.inc(CounterExpireOldReviewsForUnitSkip)
			failed = append(failed, stepKey)
			return
		}
		expired = append(expired, key)
	})
	m.counters.Increment(CounterExpireOldReviewsForUnitExpire, int64(len(expired)))
	if err != nil {
		return expired, failed, err
	}
	m.inc(CounterExpireOldReviewsForUnitSuccess)
	return expired, failed, nil
}

// StartReviewProcessFor registers a submission with the review subsystem by
// creating its empty summary. It may only happen once per submission.
func (m *ReviewManager) StartReviewProcessFor(ctx context.Context, unitID, submissionKey, revieweeKey string) (string, error) {
	m.inc(CounterStartReviewProcessForStart)
	key, err := m.createReviewSummary(ctx, unitID, submissionKey, revieweeKey)
	if err != nil {
		m.inc(CounterStartReviewProcessForFailed)
		return "", err
	}
	m.inc(CounterStartReviewProcessForSuccess)
	return key, nil
}

func (m *ReviewManager) createReviewSummary(ctx context.Context, unitID, submissionKey, revieweeKey string) (string, error) {
	if err := requireIdentity(map[string]string{
		"unit_id":        unitID,
		"submission_key": submissionKey,
		"reviewee_key":   revieweeKey,
	}); err != nil {
		return "", err
	}

	summaryKey := models.ReviewSummaryKey(unitID, submissionKey, revieweeKey)
	var written string
	err := m.transaction(ctx, func(tx ReviewTx) error {
		collision, err := tx.GetSummary(summaryKey)
		if err != nil {
			return err
		}
		if collision != nil {
			m.inc(CounterStartReviewProcessForAlreadyStarted)
			return &ReviewAlreadyStartedError{Key: summaryKey}
		}

		now := m.now()
		keys, err := tx.Put(&models.ReviewSummary{
			UnitID:        unitID,
			SubmissionKey: submissionKey,
			RevieweeKey:   revieweeKey,
			CreateDate:    now,
			ChangeDate:    now,
		})
		if err != nil {
			return err
		}
		written = keys[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return written, nil
}

// transaction runs fn in a store transaction, re-running it from scratch when
// a concurrent writer changed one of the records it read.
func (m *ReviewManager) transaction(ctx context.Context, fn func(tx ReviewTx) error) error {
	var err error
	for attempt := 0; attempt < maxTransactionAttempts; attempt++ {
		err = m.store.Transaction(ctx, fn)
		if !errors.Is(err, ErrReviewStoreConflict) {
			return err
		}
	}
	return err
}

func moveCount(summary *models.ReviewSummary, from, to models.ReviewState) error {
	if err := summary.DecrementCount(from); err != nil {
		return &ReviewConsistencyError{Key: summary.Key, Reason: "cannot move count from " + from.String(), Err: err}
	}
	if err := summary.IncrementCount(to); err != nil {
		return &ReviewConsistencyError{Key: summary.Key, Reason: "cannot move count to " + to.String(), Err: err}
	}
	return nil
}

func requireIdentity(fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrReviewInvalidInput, name)
		}
	}
	return nil
}
