package routes

import (
	"net/http"

	"peer-review-api/controllers"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, reviews *controllers.ReviewController) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"message": "Peer Review API is running",
			})
		})
		v1.GET("/counters", reviews.GetCounters)

		summaries := v1.Group("/review-summaries")
		{
			summaries.POST("", reviews.StartReviewProcess)
			summaries.GET("/:key", reviews.GetReviewSummary)
		}

		steps := v1.Group("/review-steps")
		{
			steps.POST("", reviews.AddReviewer)
			steps.GET("/:key", reviews.GetReviewStep)
			steps.DELETE("/:key", reviews.DeleteReviewer)
			steps.POST("/:key/expire", reviews.ExpireReview)
		}

		v1.POST("/units/:unit_id/expire-old-reviews", reviews.ExpireOldReviews)

		submissions := v1.Group("/submissions")
		{
			submissions.POST("", reviews.CreateSubmission)
			submissions.GET("/:key", reviews.GetSubmission)
		}

		reviewContents := v1.Group("/reviews")
		{
			reviewContents.POST("", reviews.CreateReview)
			reviewContents.GET("/:key", reviews.GetReview)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Endpoint not found", "path": c.Request.URL.Path})
	})
}
