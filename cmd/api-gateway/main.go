package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/noah-isme/edubot-api/api/swagger"
	"github.com/noah-isme/edubot-api/internal/app"
	"github.com/noah-isme/edubot-api/pkg/config"
	"github.com/noah-isme/edubot-api/pkg/logger"
)

// @title EduBot API
// @version 1.0.0
// @description Academic assistant for university students: grades, classrooms, improvement plans and voice or image messages.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to wire application", "error", err)
	}
	defer a.Close()

	a.Start(ctx)
	if err := a.Run(ctx); err != nil {
		logr.Sugar().Errorw("server failed", "error", err)
	}
}
