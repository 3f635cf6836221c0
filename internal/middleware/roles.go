package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omegashop/storefront/internal/models"
)

// RequireRoles must run after AuthMiddleware. It lets the request through
// only when the caller holds one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !p.Is(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}
