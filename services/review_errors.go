package services

import (
	"errors"
	"fmt"

	"peer-review-api/models"
)

var (
	ErrReviewNotFound              = errors.New("review entity not found")
	ErrReviewStepRemoved           = errors.New("review step removed state does not allow operation")
	ErrReviewInvalidTransition     = errors.New("invalid review state transition")
	ErrReviewProcessAlreadyStarted = errors.New("review process already started")
	ErrReviewConsistency           = errors.New("review data consistency fault")
	ErrReviewInvalidInput          = errors.New("invalid review input")
	ErrReviewStoreConflict         = errors.New("review record modified concurrently")
)

// Error kinds reported by ReviewErrorKind.
const (
	ReviewErrorKindNotFound          = "not_found"
	ReviewErrorKindRemoved           = "removed"
	ReviewErrorKindInvalidTransition = "invalid_transition"
	ReviewErrorKindAlreadyStarted    = "already_started"
	ReviewErrorKindConsistency       = "consistency"
	ReviewErrorKindInvalidInput      = "invalid_input"
	ReviewErrorKindConflict          = "conflict"
	ReviewErrorKindInternal          = "internal"
)

// ReviewNotFoundError is returned when a referenced step or summary is absent.
type ReviewNotFoundError struct {
	Entity string
	Key    string
}

func (e *ReviewNotFoundError) Error() string {
	return fmt.Sprintf("no %s found with key %s", e.Entity, e.Key)
}

func (e *ReviewNotFoundError) Is(target error) bool { return target == ErrReviewNotFound }

// ReviewRemovedError carries the removed flag that blocked the operation.
type ReviewRemovedError struct {
	Key     string
	Removed bool
}

func (e *ReviewRemovedError) Error() string {
	return fmt.Sprintf("cannot operate on review step %s: removed is %t", e.Key, e.Removed)
}

func (e *ReviewRemovedError) Is(target error) bool { return target == ErrReviewStepRemoved }

type ReviewTransitionError struct {
	Key    string
	Before models.ReviewState
	After  models.ReviewState
}

func (e *ReviewTransitionError) Error() string {
	return fmt.Sprintf("cannot transition review step %s: attempted to transition from %s to %s", e.Key, e.Before, e.After)
}

func (e *ReviewTransitionError) Is(target error) bool { return target == ErrReviewInvalidTransition }

type ReviewAlreadyStartedError struct {
	Key string
}

func (e *ReviewAlreadyStartedError) Error() string {
	return fmt.Sprintf("review process already started for summary %s", e.Key)
}

func (e *ReviewAlreadyStartedError) Is(target error) bool {
	return target == ErrReviewProcessAlreadyStarted
}

// ReviewConsistencyError signals a broken internal invariant. It is a bug or
// data corruption, never a user error.
type ReviewConsistencyError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ReviewConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consistency fault on %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("consistency fault on %s: %s", e.Key, e.Reason)
}

func (e *ReviewConsistencyError) Unwrap() error { return e.Err }

func (e *ReviewConsistencyError) Is(target error) bool { return target == ErrReviewConsistency }

// ReviewErrorKind classifies err for callers that need to decide between
// retrying, showing a message or reporting a bug.
func ReviewErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReviewNotFound):
		return ReviewErrorKindNotFound
	case errors.Is(err, ErrReviewStepRemoved):
		return ReviewErrorKindRemoved
	case errors.Is(err, ErrReviewInvalidTransition):
		return ReviewErrorKindInvalidTransition
	case errors.Is(err, ErrReviewProcessAlreadyStarted):
		return ReviewErrorKindAlreadyStarted
	case errors.Is(err, ErrReviewConsistency):
		return ReviewErrorKindConsistency
	case errors.Is(err, ErrReviewInvalidInput):
		return ReviewErrorKindInvalidInput
	case errors.Is(err, ErrReviewStoreConflict):
		return ReviewErrorKindConflict
	}
	return ReviewErrorKindInternal
}
