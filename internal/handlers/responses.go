package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/internal/dispatch"
	"github.com/KanishkKundu05/scrapeX/internal/routing"
	"github.com/KanishkKundu05/scrapeX/internal/twitterapi"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// ListResponses returns response tasks, filterable by status
func ListResponses(c *gin.Context) {
	responses, err := deps.Responses.List(c.Request.Context(), c.Query("status"), 0)
	if err != nil {
		deps.Logger.WithError(err).Error("Failed to list responses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list responses"})
		return
	}
	if responses == nil {
		responses = []models.TweetResponse{}
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses, "count": len(responses)})
}

// ComposeResponse queues a manually written reply for a mention. The reply
// is queued pending, not sent; dispatch is a separate explicit step.
func ComposeResponse(c *gin.Context) {
	var req struct {
		TweetID      string `json:"tweet_id" binding:"required"`
		ResponseText string `json:"response_text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tweet_id and response_text are required"})
		return
	}

	id, err := deps.Router.Compose(c.Request.Context(), req.TweetID, req.ResponseText)
	if err != nil {
		if errors.Is(err, routing.ErrOpenResponseExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "an open response already exists for this tweet"})
			return
		}
		deps.Logger.WithError(err).Error("Failed to compose response")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compose response"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "status": models.ResponseStatusPending})
}

// DispatchResponse posts a queued reply through the transport. The session
// may be pinned explicitly; otherwise the oldest active one is used.
func DispatchResponse(c *gin.Context) {
	taskID := c.Param("id")

	var req struct {
		SessionID string `json:"session_id"`
	}
	// Body is optional; an empty body means default session selection.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	responseTweetID, err := deps.Dispatcher.Dispatch(c.Request.Context(), taskID, req.SessionID)
	if err != nil {
		countDispatch("failure")
		switch {
		case errors.Is(err, dispatch.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "response task not found"})
		case errors.Is(err, dispatch.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, dispatch.ErrAlreadySent):
			c.JSON(http.StatusConflict, gin.H{"error": "response already sent"})
		case errors.Is(err, dispatch.ErrAlreadyDispatching):
			c.JSON(http.StatusConflict, gin.H{"error": "dispatch already in progress"})
		case errors.Is(err, dispatch.ErrNoActiveSession):
			c.JSON(http.StatusConflict, gin.H{"error": "no active session available"})
		default:
			var apiErr *twitterapi.APIError
			if errors.As(err, &apiErr) {
				deps.Logger.WithFields(logging.Fields{
					"task_id":     taskID,
					"status_code": apiErr.StatusCode,
				}).Error("Transport rejected dispatch")
				c.JSON(http.StatusBadGateway, gin.H{"error": "transport rejected the post", "detail": apiErr.Body})
				return
			}
			deps.Logger.WithError(err).WithFields(logging.Fields{
				"task_id": taskID,
			}).Error("Dispatch failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to post response"})
		}
		return
	}

	countDispatch("success")
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"response_tweet_id": responseTweetID,
	})
}

func countDispatch(outcome string) {
	if deps.Metrics != nil {
		deps.Metrics.DispatchAttempts.WithLabelValues(outcome).Inc()
	}
}
