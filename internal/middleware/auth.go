package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"arcade-wager-backend/internal/models"
	"arcade-wager-backend/internal/services"
)

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// SessionChecker resolves the session a token was issued for. Logging out
// deletes the session, which revokes every token bound to it.
type SessionChecker interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, sessionID, action string, limit int, window time.Duration) (bool, error)
}

func AuthMiddleware(jwtService TokenValidator, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			// Browsers cannot set headers on websocket upgrades.
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if _, err := sessions.GetSession(c.Request.Context(), claims.SessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
			c.Abort()
			return
		}

		c.Set("session_id", claims.SessionID)
		c.Set("address", claims.Address)

		c.Next()
	}
}

// RateLimitMiddleware limits bet commands per session. Requests not covered
// by a rule pass through.
func RateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetString("session_id")
		if sessionID == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		action, limit := rateLimitRule(c.FullPath())
		if action == "" {
			c.Next()
			return
		}
		window := time.Minute

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), sessionID, action, limit, window)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateLimitRule(route string) (string, int) {
	switch {
	case strings.HasSuffix(route, "/boost"):
		return "boost", services.DefaultRateLimitBoosts
	case strings.HasSuffix(route, "/accept"), strings.HasSuffix(route, "/cancel"):
		return "bet", services.DefaultRateLimitBets
	case strings.HasSuffix(route, "/bets"):
		return "bet", services.DefaultRateLimitBets
	}
	return "", 0
}
