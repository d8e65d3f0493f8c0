package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/db"
	"github.com/ignatzorin/watchpay-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/watchpay-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/watchpay-backend/internal/http/router"
	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
	"github.com/ignatzorin/watchpay-backend/internal/service"
	"github.com/ignatzorin/watchpay-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, os.DirFS(cfg.MigrationsPath)); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	accountService := service.NewAccountService(userRepo, ledgerRepo, cfg.Rewards, cfg.PublicBaseURL)
	rewardService := service.NewRewardService(
		service.NewWatchVerifier(ledgerRepo, cfg.Rewards),
		service.NewCreditingEngine(ledgerRepo, cfg.Rewards),
		hub,
	)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, hub, cfg.Rewards.MinWithdrawal)

	if err := authService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		log.Fatalf("main: не удалось создать администратора: %v", err)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:       httpHandlers.NewAuthHandler(authService),
		Account:    httpHandlers.NewAccountHandler(accountService),
		Watch:      httpHandlers.NewWatchHandler(rewardService),
		Withdrawal: httpHandlers.NewWithdrawalHandler(withdrawalService),
		Health:     httpHandlers.NewHealthHandler(dbConn),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
