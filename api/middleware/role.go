package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/auth"
)

// RequireRole rejects callers whose role ranks below min.
// Must be placed after the Auth middleware in the chain.
func RequireRole(min auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !claims.Role.AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(min) + " access required"})
			return
		}
		c.Next()
	}
}
