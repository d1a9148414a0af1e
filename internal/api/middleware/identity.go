package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minqi/snaplore/internal/logger"
)

// userIDKey is the Gin context key holding the authenticated user ID.
const userIDKey = "user_id"

// userIDHeader carries the caller identity. Verification happens upstream at
// the gateway; this service only scopes data by it.
const userIDHeader = "X-User-ID"

// RequireUser returns a middleware that rejects requests without a caller
// identity and threads it through the request context.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + userIDHeader + " header",
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// UserID extracts the authenticated user ID from the Gin context.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
