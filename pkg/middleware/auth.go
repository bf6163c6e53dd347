package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/sessions"
	"github.com/ciata/ciata-cms/internal/tokens"
	"github.com/ciata/ciata-cms/internal/users"
	"github.com/ciata/ciata-cms/pkg/logger"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// AuthMiddleware verifies the Bearer token, rejects blacklisted tokens,
// and stores the claims plus the raw token on the request context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		claims, err := tokens.Parse(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		blacklisted, err := sessions.IsTokenBlacklisted(c.Request.Context(), raw)
		if err != nil {
			// Redis being down must not lock every caller out
			logger.Warnf("token blacklist check failed: %v", err)
		} else if blacklisted {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, raw)
		c.Next()
	}
}

// Claims returns the verified claims set by AuthMiddleware, or nil.
func Claims(c *gin.Context) *tokens.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*tokens.Claims)
	return claims
}

// RequireAdmin gates a route on the admin role. The current role is
// re-read from the store rather than trusted from the token alone; a user
// whose account was demoted mid-session loses admin routes immediately,
// though the token itself stays valid until expiry.
func RequireAdmin(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		u, err := svc.FindByUsername(c.Request.Context(), claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		if u == nil || u.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}
