package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/logger"
)

// RateLimitMiddleware создаёт middleware для ограничения количества запросов.
// Авторизованные запросы считаются по пользователю, остальные по IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: period,
		Limit:  limit,
	})

	return func(c *gin.Context) {
		lctx, err := instance.Get(c, rateLimitKey(c))
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Error("rate limiter unavailable")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error: "слишком много запросов, попробуйте позже",
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if raw, ok := c.Get(ContextUserIDKey); ok {
		if userID, ok := raw.(uuid.UUID); ok {
			return "user:" + userID.String()
		}
	}
	return "ip:" + c.ClientIP()
}
