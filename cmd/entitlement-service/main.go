package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/app"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/config"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}

func main() {
	log := initLogger()

	log.Infow("Entitlement service starting up...")

	// Загрузка конфигурации
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is not set, tokens cannot be validated")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warnw("Stripe webhook secret is not set, webhooks will be rejected")
	}

	// Устанавливаем режим Gin в зависимости от окружения
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Сборка приложения
	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer a.Close()

	// Запускаем сбор системных метрик
	a.SystemMetrics.StartRecording(15 * time.Second)
	defer a.SystemMetrics.Stop()

	// Запуск сервера в горутине
	go func() {
		if err := a.Server.Start(); err != nil {
			log.Fatalw("Server error", "error", err)
		}
	}()
	log.Infow("Entitlement service started", "port", cfg.App.Port)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := a.Server.Shutdown(ctxShutdown); err != nil {
		log.Fatalw("Server forced to shutdown", "error", err)
	}

	log.Info("Server stopped gracefully")
}
