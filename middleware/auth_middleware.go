package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mabletask/funnel/utils"
)

// AuthRequired admits requests that carry the shared API key in X-API-KEY or
// a valid analyst JWT in the jwt_token cookie or a Bearer header.
func AuthRequired(apiKey string, jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey != "" {
			if key := c.GetHeader("X-API-KEY"); key != "" &&
				subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				c.Set("user_id", 0)
				c.Next()
				return
			}
		}

		tokenString, err := c.Cookie("jwt_token")
		if err != nil {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}

		claims, err := utils.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// APIKeyRequired admits only requests carrying the shared API key. Analyst
// JWTs are not enough. With no key configured every request is refused.
func APIKeyRequired(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-KEY")
		if apiKey == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: API key required"})
			return
		}
		c.Next()
	}
}
