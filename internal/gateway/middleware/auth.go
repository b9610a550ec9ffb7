package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lunchbreak/internal/auth"
	"lunchbreak/internal/utils"
)

const actorKey = "actor"

// JWTAuth requires a bearer token and stores the caller in the context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Missing bearer token"})
			return
		}

		claims, err := utils.ParseToken(secret, token)
		if err != nil {
			logrus.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Debug("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// StaffOnly must run after JWTAuth.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Staff access required"})
			return
		}
		c.Next()
	}
}

// Actor returns the authenticated caller, or the zero Actor.
func Actor(c *gin.Context) auth.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(auth.Actor); ok {
			return a
		}
	}
	return auth.Actor{}
}
