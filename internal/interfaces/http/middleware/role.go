package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/letably/backend/internal/infrastructure/auth"
)

// RequireRole rejects requests whose JWT role is not in the allowed set.
// Runs after the JWT middleware; a request with no claims is rejected.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := GetJWTRole(c)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Insufficient permissions",
				},
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin restricts a route to agency administrators
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}
