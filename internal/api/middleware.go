package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

const (
	adminKey = "admin"
	tokenKey = "token"
)

// withRequestLog logs every request through logrus
func withRequestLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("HTTP request")
		case status >= http.StatusBadRequest:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// withAuth requires a valid bearer token backed by a live session
func withAuth(auth authService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			logger.Warnf("Unauthorized request to %s", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		admin, _, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, apperrors.ErrSessionExpired):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Session expired"})
			return
		case errors.Is(err, apperrors.ErrUnauthorized):
			logger.Warnf("Rejected token for %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		case err != nil:
			logger.Errorf("Failed to authenticate request: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		c.Set(adminKey, admin)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// requireAdmin lets through only accounts flagged as administrators.
// It must run after withAuth.
func requireAdmin(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := c.MustGet(adminKey).(*models.AdminUser)
		if !ok || !admin.IsAdmin {
			if ok {
				logger.Warnf("Account %q is not allowed to call %s", admin.Username, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}
