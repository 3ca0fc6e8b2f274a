package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// ListTweets returns ingested mentions, filterable by routing status and
// upstream rule tag
func ListTweets(c *gin.Context) {
	tweets, err := deps.Tweets.List(c.Request.Context(), c.Query("status"), c.Query("rule_tag"), 0)
	if err != nil {
		deps.Logger.WithError(err).Error("Failed to list tweets")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tweets"})
		return
	}
	if tweets == nil {
		tweets = []models.Tweet{}
	}
	c.JSON(http.StatusOK, gin.H{"tweets": tweets, "count": len(tweets)})
}

// RouteTweets manually (re-)triggers routing for the given tweet ids.
// Already-routed ids are no-ops, so re-triggering is always safe.
func RouteTweets(c *gin.Context) {
	var req struct {
		TweetIDs []string `json:"tweet_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tweet_ids is required"})
		return
	}

	summary := deps.Router.Route(c.Request.Context(), req.TweetIDs)
	countRouting(summary.Routed, summary.Skipped, summary.Failed)

	c.JSON(http.StatusOK, gin.H{
		"routed":  summary.Routed,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
		"noop":    summary.NoOp,
	})
}
