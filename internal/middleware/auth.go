package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// ContextAdminKey is the gin context key holding validated admin claims.
const ContextAdminKey = "adminClaims"

type tokenValidator interface {
	ValidateToken(token string) (*models.AdminClaims, error)
}

// AdminAuth guards moderation routes with a bearer token check.
func AdminAuth(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}
		claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}
