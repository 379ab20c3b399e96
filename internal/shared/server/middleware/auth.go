package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/shared/auth"
	"renovix-backend/internal/shared/server/respond"
)

const userIDKey = "userId"

// Auth resolves the caller identity and stores it in context. Anonymous
// requests are allowed: sessions created without an identity are open.
// A presented credential must still be valid; a malformed or expired
// token is rejected rather than downgraded to anonymous.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				respond.Error(c, http.StatusUnauthorized, "AUTH_001", "missing or malformed authorization header", nil)
				return
			}

			claims, err := auth.VerifyJWT(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "AUTH_002", "invalid or expired token", nil)
				return
			}

			c.Set(userIDKey, claims.Sub)
			c.Set("isGuest", false)
			c.Next()
			return
		}

		if guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id")); guestID != "" {
			c.Set(userIDKey, "guest:"+guestID)
			c.Set("isGuest", true)
			c.Next()
			return
		}

		// No identity at all: anonymous.
		c.Set(userIDKey, "")
		c.Set("isGuest", true)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
// Empty means anonymous.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
