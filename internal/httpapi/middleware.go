package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/identity"
)

const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
	identityKey    = "identity"
)

// Identify reads the caller from the X-User-ID header. Requests without
// one are rejected. X-User-Name optionally carries a display name.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "x-user-id required"})
			return
		}
		c.Set(identityKey, identity.Identity{
			ID:          userID,
			DisplayName: strings.TrimSpace(c.GetHeader(headerUserName)),
		})
		c.Next()
	}
}

// IdentityFromContext returns the caller set by Identify.
func IdentityFromContext(c *gin.Context) identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.Identity{}
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"user", c.GetHeader(headerUserID),
		)
	}
}
