package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: admin.POST("/withdrawals/:id/process", UUIDValidator("id"), handler.Process)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			abortWithError(c, apperror.New(apperror.ErrCodeInvalidInput, "параметр "+paramName+" должен быть валидным UUID"))
			return
		}
		c.Next()
	}
}
