package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/http/handlers"
	"github.com/ignatzorin/watchpay-backend/internal/http/middleware"
	"github.com/ignatzorin/watchpay-backend/internal/service"
)

// Handlers собирает все HTTP хэндлеры приложения.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Account    *handlers.AccountHandler
	Watch      *handlers.WatchHandler
	Withdrawal *handlers.WithdrawalHandler
	Health     *handlers.HealthHandler
	WS         *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/me", h.Account.Me)
		protected.GET("/me/watches", h.Account.ListWatches)
		protected.GET("/me/transactions", h.Account.ListTransactions)

		protected.POST("/watch/report", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Watch.Report)

		protected.POST("/withdrawals", h.Withdrawal.CreateWithdrawal)
		protected.GET("/withdrawals", h.Withdrawal.ListWithdrawals)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.AdminOnly())
	{
		admin.GET("/users", h.Account.ListUsers)
		admin.GET("/withdrawals", h.Withdrawal.AdminList)
		admin.POST("/withdrawals/:id/process", middleware.UUIDValidator("id"), h.Withdrawal.Process)
	}

	return r
}
