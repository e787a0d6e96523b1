package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/config"
	"github.com/techblog/internal/db"
	"github.com/techblog/internal/logger"
	"github.com/techblog/internal/metrics"
	"github.com/techblog/internal/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	gdb, err := db.Open(cfg.DatabasePath, logger.NewGormLogger())
	if err != nil {
		slog.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			slog.Error("failed to close database", slog.Any("error", err))
		}
	}()

	created, err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword)
	if err != nil {
		slog.Error("failed to ensure super root user", slog.Any("error", err))
		os.Exit(1)
	}
	if created {
		slog.Info("super root user created", slog.String("username", cfg.SuperRootUserName))
	}

	r := router.SetupRouter(cfg, gdb, metrics.New())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			slog.String("app", cfg.AppName),
			slog.String("version", cfg.Version),
			slog.String("addr", cfg.ListenAddr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to run server", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}
}
