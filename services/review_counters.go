package services

// CounterSink receives increment-only operational counters. Implementations
// must not block and the manager never reads counter values back.
type CounterSink interface {
	Increment(name string, amount int64)
}

// CounterRegistrar attaches descriptions to counter names.
type CounterRegistrar interface {
	Register(name, description string)
}

const (
	CounterAddReviewerBadSummaryKey         = "review-add-reviewer-bad-summary-key"
	CounterAddReviewerSetAssignerKindHuman  = "review-add-reviewer-set-assigner-kind-human"
	CounterAddReviewerCreateReviewStep      = "review-add-reviewer-create-review-step"
	CounterAddReviewerExpiredStepReassigned = "review-add-reviewer-expired-step-reassigned"
	CounterAddReviewerFailed                = "review-add-reviewer-failed"
	CounterAddReviewerRemovedStepUnremoved  = "review-add-reviewer-removed-step-unremoved"
	CounterAddReviewerStart                 = "review-add-reviewer-start"
	CounterAddReviewerSuccess               = "review-add-reviewer-success"
	CounterAddReviewerUnremovedStepFailed   = "review-add-reviewer-unremoved-step-failed"

	CounterDeleteReviewerAlreadyRemoved = "review-delete-reviewer-already-removed"
	CounterDeleteReviewerFailed         = "review-delete-reviewer-failed"
	CounterDeleteReviewerStart          = "review-delete-reviewer-start"
	CounterDeleteReviewerStepMiss       = "review-delete-reviewer-step-miss"
	CounterDeleteReviewerSuccess        = "review-delete-reviewer-success"
	CounterDeleteReviewerSummaryMiss    = "review-delete-reviewer-summary-miss"

	CounterExpireReviewCannotTransition = "review-expire-review-cannot-transition"
	CounterExpireReviewFailed           = "review-expire-review-failed"
	CounterExpireReviewStart            = "review-expire-review-start"
	CounterExpireReviewStepMiss         = "review-expire-review-step-miss"
	CounterExpireReviewSuccess          = "review-expire-review-success"
	CounterExpireReviewSummaryMiss      = "review-expire-review-summary-miss"

	CounterExpireOldReviewsForUnitExpire  = "review-expire-old-reviews-for-unit-expire"
	CounterExpireOldReviewsForUnitSkip    = "review-expire-old-reviews-for-unit-skip"
	CounterExpireOldReviewsForUnitStart   = "review-expire-old-reviews-for-unit-start"
	CounterExpireOldReviewsForUnitSuccess = "review-expire-old-reviews-for-unit-success"

	CounterStartReviewProcessForAlreadyStarted = "review-start-review-process-for-already-started"
	CounterStartReviewProcessForFailed         = "review-start-review-process-for-failed"
	CounterStartReviewProcessForStart          = "review-start-review-process-for-start"
	CounterStartReviewProcessForSuccess        = "review-start-review-process-for-success"
)

var reviewCounterDescriptions = map[string]string{
	CounterAddReviewerBadSummaryKey:         "number of times AddReviewer failed due to a bad review summary key",
	CounterAddReviewerSetAssignerKindHuman:  "number of times AddReviewer changed an existing step's assigner kind to human",
	CounterAddReviewerCreateReviewStep:      "number of times AddReviewer created a new review step",
	CounterAddReviewerExpiredStepReassigned: "number of times AddReviewer reassigned an expired step",
	CounterAddReviewerFailed:                "number of times AddReviewer had a fatal error",
	CounterAddReviewerRemovedStepUnremoved:  "number of times AddReviewer unremoved a removed review step",
	CounterAddReviewerStart:                 "number of times AddReviewer has started processing",
	CounterAddReviewerSuccess:               "number of times AddReviewer completed successfully",
	CounterAddReviewerUnremovedStepFailed:   "number of times AddReviewer failed on an unremoved step with a fatal error",

	CounterDeleteReviewerAlreadyRemoved: "number of times DeleteReviewer was called on a step already removed",
	CounterDeleteReviewerFailed:         "number of times DeleteReviewer had a fatal error",
	CounterDeleteReviewerStart:          "number of times DeleteReviewer has started processing",
	CounterDeleteReviewerStepMiss:       "number of times DeleteReviewer found a missing review step",
	CounterDeleteReviewerSuccess:        "number of times DeleteReviewer completed successfully",
	CounterDeleteReviewerSummaryMiss:    "number of times DeleteReviewer found a missing review summary",

	CounterExpireReviewCannotTransition: "number of times ExpireReview was called on a step that could not be expired",
	CounterExpireReviewFailed:           "number of times ExpireReview had a fatal error",
	CounterExpireReviewStart:            "number of times ExpireReview has started processing",
	CounterExpireReviewStepMiss:         "number of times ExpireReview found a missing review step",
	CounterExpireReviewSuccess:          "number of times ExpireReview completed successfully",
	CounterExpireReviewSummaryMiss:      "number of times ExpireReview found a missing review summary",

	CounterExpireOldReviewsForUnitExpire:  "number of steps ExpireOldReviewsForUnit has expired",
	CounterExpireOldReviewsForUnitSkip:    "number of times ExpireOldReviewsForUnit skipped a step due to an error",
	CounterExpireOldReviewsForUnitStart:   "number of times ExpireOldReviewsForUnit has started processing",
	CounterExpireOldReviewsForUnitSuccess: "number of times ExpireOldReviewsForUnit completed successfully",

	CounterStartReviewProcessForAlreadyStarted: "number of times StartReviewProcessFor was called when review already started",
	CounterStartReviewProcessForFailed:         "number of times StartReviewProcessFor had a fatal error",
	CounterStartReviewProcessForStart:          "number of times StartReviewProcessFor has started processing",
	CounterStartReviewProcessForSuccess:        "number of times StartReviewProcessFor completed successfully",
}

// RegisterReviewCounters declares every review counter up front so scrapes
// report zero values before the first event.
func RegisterReviewCounters(r CounterRegistrar) {
	if r == nil {
		return
	}
	for name, description := range reviewCounterDescriptions {
		r.Register(name, description)
	}
}

type discardCounters struct{}

func (discardCounters) Increment(string, int64) {}
