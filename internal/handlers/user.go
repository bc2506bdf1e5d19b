package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

type SessionStore interface {
	StoreSession(ctx context.Context, session *models.Session, expiry time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// UserHandler issues API sessions. Every session acts for the backend's
// single wallet identity.
type UserHandler struct {
	sessions   SessionStore
	jwtService *services.JWTService
	apiKey     string
	address    string
}

func NewUserHandler(sessions SessionStore, jwtService *services.JWTService, apiKey, address string) *UserHandler {
	return &UserHandler{
		sessions:   sessions,
		jwtService: jwtService,
		apiKey:     apiKey,
		address:    address,
	}
}

type tokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

func (h *UserHandler) CreateSession(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	now := time.Now()
	session := &models.Session{
		SessionID:    models.GenerateSessionID(),
		Address:      h.address,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := h.sessions.StoreSession(c.Request.Context(), session, services.TTLSession); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create session",
			"details": err.Error(),
		})
		return
	}

	token, err := h.jwtService.GenerateToken(session.SessionID, session.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to issue token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(services.TTLSession.Seconds()),
		"session":    session,
	})
}

func (h *UserHandler) GetCurrentSession(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *UserHandler) Logout(c *gin.Context) {
	sessionID := c.GetString("session_id")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	if err := h.sessions.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
