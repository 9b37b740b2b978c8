package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/config"
	"github.com/matheusmosca/library-reservations/internal/logger"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/internal/telemetry"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	if cfg.OTelEnabled {
		providers, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			zlog.Fatal("Failed to initialize telemetry", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				zlog.Error("Error shutting down telemetry", zap.Error(err))
			}
		}()
	}

	// Initialize database
	db, err := storage.Open(ctx, storage.Config{
		Driver:        cfg.Database.Driver,
		DSN:           cfg.Database.DSN(),
		MaxConns:      cfg.Database.MaxConns,
		RetryAttempts: cfg.Database.RetryAttempts,
	}, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := newRouter(cfg, db, zlog)
	if err != nil {
		zlog.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("🚀 Library Service listening", zap.String("port", cfg.Port), zap.String("driver", db.Driver()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("⏹️ Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Error shutting down server", zap.Error(err))
	}
}
