package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/auth"
)

// ContextKeyClaims is the gin context key holding the caller's *auth.Claims.
const ContextKeyClaims = "claims"

// TokenCookie is the cookie the site stores the session token in.
const TokenCookie = "token"

// ExtractToken retrieves the session token from the request, in priority
// order:
//  1. Authorization: Bearer <token>
//  2. the token cookie
//  3. the token query parameter (browsers cannot set headers on websockets)
func ExtractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// Auth rejects requests without a valid token and stores the verified
// claims in the gin context for downstream handlers.
func Auth(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := m.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// OptionalAuth stores the caller's claims when a valid token is present
// and lets anonymous requests through otherwise.
func OptionalAuth(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractToken(c); token != "" {
			if claims, err := m.Parse(token); err == nil {
				c.Set(ContextKeyClaims, claims)
			}
		}
		c.Next()
	}
}

// Claims returns the caller's claims, or nil for anonymous requests.
func Claims(c *gin.Context) *auth.Claims {
	raw, _ := c.Get(ContextKeyClaims)
	claims, _ := raw.(*auth.Claims)
	return claims
}
