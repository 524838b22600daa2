package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/omreki/domasy/internal/users"
)

const contextUserKey = "auth.user"

// Middleware authenticates the bearer token and loads the acting user into
// the request context. Requests without a valid token are rejected.
func Middleware(service *Service, repo users.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := service.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := repo.FindByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Middleware, or nil.
func CurrentUser(c *gin.Context) *users.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*users.User)
	return user
}

// RequireRole aborts with 403 unless the authenticated user holds the role.
func RequireRole(role users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
