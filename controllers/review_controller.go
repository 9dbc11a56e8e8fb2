package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"peer-review-api/monitor"
	"peer-review-api/services"
	"peer-review-api/utils"

	"github.com/gin-gonic/gin"
)

// ReviewController exposes the review manager and the content store over
// HTTP. It holds no state of its own.
type ReviewController struct {
	manager  *services.ReviewManager
	content  *services.ContentService
	counters *monitor.Counters
}

func NewReviewController(manager *services.ReviewManager, content *services.ContentService, counters *monitor.Counters) *ReviewController {
	return &ReviewController{manager: manager, content: content, counters: counters}
}

type startReviewRequest struct {
	UnitID        string `json:"unit_id" validate:"required,max=191"`
	SubmissionKey string `json:"submission_key" validate:"required,max=191"`
	RevieweeKey   string `json:"reviewee_key" validate:"required,max=191"`
}

type addReviewerRequest struct {
	UnitID        string `json:"unit_id" validate:"required,max=191"`
	SubmissionKey string `json:"submission_key" validate:"required,max=191"`
	RevieweeKey   string `json:"reviewee_key" validate:"required,max=191"`
	ReviewerKey   string `json:"reviewer_key" validate:"required,max=191"`
}

type expireOldReviewsRequest struct {
	WindowMinutes *int `json:"window_minutes" validate:"required,gte=0"`
}

type createSubmissionRequest struct {
	UnitID    string          `json:"unit_id" validate:"required,max=191"`
	AuthorKey string          `json:"author_key" validate:"required,max=191"`
	Contents  json.RawMessage `json:"contents"`
}

type createReviewRequest struct {
	ReviewStepKey string          `json:"review_step_key" validate:"required,max=80"`
	Contents      json.RawMessage `json:"contents"`
}

// bindRequest decodes and validates the JSON body into req, writing the 400
// response itself when it fails.
func bindRequest(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body", "details": err.Error()})
		return false
	}
	if err := utils.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Validation failed", "details": err.Error()})
		return false
	}
	return true
}

func reviewErrorStatus(kind string) int {
	switch kind {
	case services.ReviewErrorKindNotFound:
		return http.StatusNotFound
	case services.ReviewErrorKindRemoved,
		services.ReviewErrorKindInvalidTransition,
		services.ReviewErrorKindAlreadyStarted,
		services.ReviewErrorKindConflict:
		return http.StatusConflict
	case services.ReviewErrorKindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondReviewError(c *gin.Context, action string, err error) {
	kind := services.ReviewErrorKind(err)
	status := reviewErrorStatus(kind)
	if status == http.StatusInternalServerError {
		log.Printf("review %s failed: %v", action, err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "kind": kind})
}

// POST /api/v1/review-summaries
func (rc *ReviewController) StartReviewProcess(c *gin.Context) {
	var req startReviewRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := rc.manager.StartReviewProcessFor(c.Request.Context(),
		utils.SanitizeInput(req.UnitID), utils.SanitizeInput(req.SubmissionKey), utils.SanitizeInput(req.RevieweeKey))
	if err != nil {
		respondReviewError(c, "start", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review_summary_key": key})
}

// GET /api/v1/review-summaries/:key
func (rc *ReviewController) GetReviewSummary(c *gin.Context) {
	key := c.Param("key")
	summary, err := rc.manager.Store().GetSummary(c.Request.Context(), key)
	if err != nil {
		respondReviewError(c, "get summary", err)
		return
	}
	if summary == nil {
		respondReviewError(c, "get summary", &services.ReviewNotFoundError{Entity: "review summary", Key: key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary, "counts": summary.Counts()})
}

// POST /api/v1/review-steps
func (rc *ReviewController) AddReviewer(c *gin.Context) {
	var req addReviewerRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := rc.manager.AddReviewer(c.Request.Context(),
		utils.SanitizeInput(req.UnitID), utils.SanitizeInput(req.SubmissionKey),
		utils.SanitizeInput(req.RevieweeKey), utils.SanitizeInput(req.ReviewerKey))
	if err != nil {
		respondReviewError(c, "add reviewer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "review_step_key": key})
}

// GET /api/v1/review-steps/:key
func (rc *ReviewController) GetReviewStep(c *gin.Context) {
	key := c.Param("key")
	step, err := rc.manager.Store().GetStep(c.Request.Context(), key)
	if err != nil {
		respondReviewError(c, "get step", err)
		return
	}
	if step == nil {
		respondReviewError(c, "get step", &services.ReviewNotFoundError{Entity: "review step", Key: key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": step})
}

// DELETE /api/v1/review-steps/:key
func (rc *ReviewController) DeleteReviewer(c *gin.Context) {
	key, err := rc.manager.DeleteReviewer(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondReviewError(c, "delete reviewer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "review_step_key": key})
}

// POST /api/v1/review-steps/:key/expire
func (rc *ReviewController) ExpireReview(c *gin.Context) {
	key, err := rc.manager.ExpireReview(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondReviewError(c, "expire", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "review_step_key": key})
}

// POST /api/v1/units/:unit_id/expire-old-reviews
func (rc *ReviewController) ExpireOldReviews(c *gin.Context) {
	var req expireOldReviewsRequest
	if !bindRequest(c, &req) {
		return
	}
	unitID := utils.SanitizeInput(c.Param("unit_id"))
	expired, failed, err := rc.manager.ExpireOldReviewsForUnit(c.Request.Context(), *req.WindowMinutes, unitID)
	if err != nil {
		if errors.Is(err, services.ErrReviewInvalidInput) {
			respondReviewError(c, "expire old reviews", err)
			return
		}
		// Keys already expired stay expired, so report them with the error.
		log.Printf("expire old reviews for unit %s stopped: %v", unitID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":      false,
			"error":        err.Error(),
			"expired_keys": expired,
			"failed_keys":  failed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"unit_id":      unitID,
		"expired_keys": expired,
		"failed_keys":  failed,
	})
}

// POST /api/v1/submissions
func (rc *ReviewController) CreateSubmission(c *gin.Context) {
	var req createSubmissionRequest
	if !bindRequest(c, &req) {
		return
	}
	submission, err := rc.content.CreateSubmission(c.Request.Context(),
		utils.SanitizeInput(req.UnitID), utils.SanitizeInput(req.AuthorKey), req.Contents)
	if err != nil {
		respondReviewError(c, "create submission", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": submission})
}

// GET /api/v1/submissions/:key
func (rc *ReviewController) GetSubmission(c *gin.Context) {
	submission, err := rc.content.GetSubmission(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondReviewError(c, "get submission", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": submission})
}

// POST /api/v1/reviews
func (rc *ReviewController) CreateReview(c *gin.Context) {
	var req createReviewRequest
	if !bindRequest(c, &req) {
		return
	}
	review, err := rc.content.CreateReview(c.Request.Context(), rc.manager.Store(),
		utils.SanitizeInput(req.ReviewStepKey), req.Contents)
	if err != nil {
		respondReviewError(c, "create review", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": review})
}

// GET /api/v1/reviews/:key
func (rc *ReviewController) GetReview(c *gin.Context) {
	review, err := rc.content.GetReview(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondReviewError(c, "get review", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": review})
}

// GET /api/v1/counters
func (rc *ReviewController) GetCounters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "counters": rc.counters.Snapshot()})
}
