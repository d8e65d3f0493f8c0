package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

const internalErrorMessage = "внутренняя ошибка сервера"

// ErrorHandler обрабатывает ошибки централизованно.
// Хэндлеры кладут ошибку в c.Error, статус и текст берутся из apperror.
// Внутренние ошибки маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := renderError(err)

		fields := logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		}
		if userID, ok := c.Get(ContextUserIDKey); ok {
			fields["user_id"] = userID
		}
		if status >= http.StatusInternalServerError {
			logger.WithFields(fields).Error("Request error")
		} else {
			logger.WithFields(fields).Debug("Request rejected")
		}

		c.JSON(status, body)
	}
}

func renderError(err error) (int, dto.ErrorResponse) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, dto.ErrorResponse{
			Error: internalErrorMessage,
			Code:  string(apperror.ErrCodeInternal),
		}
	}

	message := appErr.Message
	if appErr.HTTPStatus >= http.StatusInternalServerError && message == "" {
		message = internalErrorMessage
	}
	return appErr.HTTPStatus, dto.ErrorResponse{Error: message, Code: string(appErr.Code)}
}

func abortWithError(c *gin.Context, err error) {
	status, body := renderError(err)
	c.AbortWithStatusJSON(status, body)
}
