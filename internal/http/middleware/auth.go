package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey   = "userID"
	ContextRoleKey     = "role"
	ContextUsernameKey = "username"
)

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortWithError(c, apperror.ErrUnauthorized)
			return
		}

		identity, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || identity.UserID == uuid.Nil {
			abortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		c.Set(ContextUserIDKey, identity.UserID)
		c.Set(ContextRoleKey, identity.Role)
		c.Set(ContextUsernameKey, identity.Username)
		c.Next()
	}
}

// AdminOnly пропускает только администраторов. Ставится после AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := service.Identity{Role: c.GetString(ContextRoleKey)}
		if !identity.IsAdmin() {
			abortWithError(c, apperror.ErrForbidden)
			return
		}
		c.Next()
	}
}
