package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/glucoview/glucoview/internal/app"
	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/pkg/logger"
)

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: libre=%s backend=%s redis=%v refresh=%s",
		cfg.Libre.BaseURL, cfg.Session.Backend, cfg.Redis.Host != "", cfg.Refresh.Interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
	logger.Infof("bye")
}
