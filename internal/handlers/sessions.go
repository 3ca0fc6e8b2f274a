package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/internal/twitterapi"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// ListSessions returns sending identities. Credentials are not part of the
// session model, so nothing secret can leak through this path.
func ListSessions(c *gin.Context) {
	sessions, err := deps.Sessions.List(c.Request.Context())
	if err != nil {
		deps.Logger.WithError(err).Error("Failed to list sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.TwitterSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// CreateSession exchanges account credentials for a login cookie and stores
// the session active. The password is used for the exchange and discarded.
func CreateSession(c *gin.Context) {
	var req struct {
		SessionName string `json:"session_name" binding:"required"`
		Username    string `json:"username" binding:"required"`
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required"`
		Proxy       string `json:"proxy"`
		TOTPSecret  string `json:"totp_secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_name, username, email and password are required"})
		return
	}

	cookie, err := deps.Twitter.Login(c.Request.Context(), twitterapi.LoginRequest{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Proxy:      req.Proxy,
		TOTPSecret: req.TOTPSecret,
	})
	if err != nil {
		countLogin("failure")
		var apiErr *twitterapi.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "login failed", "detail": apiErr.Body})
			return
		}
		deps.Logger.WithError(err).Error("Session login exchange failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
		return
	}

	id, err := deps.Sessions.Create(c.Request.Context(), req.SessionName, cookie, req.Proxy, req.Username, req.Email)
	if err != nil {
		deps.Logger.WithError(err).Error("Failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	countLogin("success")
	c.JSON(http.StatusCreated, gin.H{"id": id, "session_name": req.SessionName})
}

// ActivateSession marks a session usable for dispatch
func ActivateSession(c *gin.Context) {
	setSessionActive(c, true)
}

// DeactivateSession removes a session from dispatch selection
func DeactivateSession(c *gin.Context) {
	setSessionActive(c, false)
}

func setSessionActive(c *gin.Context, active bool) {
	id := c.Param("id")
	changed, err := deps.Sessions.SetActive(c.Request.Context(), id, active)
	if err != nil {
		deps.Logger.WithError(err).Error("Failed to update session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update session"})
		return
	}
	if !changed {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

func countLogin(outcome string) {
	if deps.Metrics != nil {
		deps.Metrics.SessionLogins.WithLabelValues(outcome).Inc()
	}
}
