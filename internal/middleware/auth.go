package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/omegashop/storefront/internal/auth"
	"github.com/omegashop/storefront/internal/models"
)

const principalKey = "principal"

// UserLookup re-reads the account behind a token.
type UserLookup interface {
	Get(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware resolves the bearer token into a principal. The account is
// re-read so a disabled user or a changed role takes effect immediately.
func AuthMiddleware(tokens *auth.TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			return
		}

		// 2. --- Validate Token ---
		claimed, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. --- Load Current Account ---
		u, err := users.Get(c.Request.Context(), claimed.UserID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				log.WithError(err).WithField("userId", claimed.UserID).Error("auth lookup failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if !u.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
			return
		}

		// 4. --- Success ---
		c.Set(principalKey, models.PrincipalOf(u))
		c.Next()
	}
}

// Principal returns the caller resolved by AuthMiddleware.
func Principal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// SetPrincipal stores p on the context.
func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}
