package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/edusched/edusched-api/internal/models"
	appErrors "github.com/edusched/edusched-api/pkg/errors"
	"github.com/edusched/edusched-api/pkg/response"
)

// RequireRoles restricts a route to the given roles. Finer checks, such as
// whether a teacher owns the session being changed, live in the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff shortcuts the owner/admin combination used on management routes.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleOwner, models.RoleAdmin)
}
