package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

var roleRank = map[models.UserRole]int{
	models.UserRoleViewer: 1,
	models.UserRoleMember: 2,
	models.UserRoleAdmin:  3,
	models.UserRoleOwner:  4,
}

// RoleAtLeast is the single place role ordering lives.
func RoleAtLeast(role models.UserRole, min models.UserRole) bool {
	return roleRank[role] >= roleRank[min]
}

// RequireAuth rejects requests that carry no resolved session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole gates a route on the session user's role.
func RequireRole(min models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := utils.GetUserRoleFromContext(c.Request.Context())
		if !ok || role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if !RoleAtLeast(models.UserRole(role), min) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			c.Abort()
			return
		}
		c.Next()
	}
}
