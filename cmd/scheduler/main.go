package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/tutor-insights-api/internal/app"
	"github.com/noah-isme/tutor-insights-api/internal/scheduler"
	"github.com/noah-isme/tutor-insights-api/pkg/config"
	"github.com/noah-isme/tutor-insights-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	container, err := app.New(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build services", "error", err)
	}
	defer container.Close() //nolint:errcheck

	sched, err := scheduler.New(container.Jobs, cfg.Cron, logr)
	if err != nil {
		logr.Sugar().Fatalw("invalid cron schedule", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	logr.Sugar().Infow("scheduler started", "entries", sched.Entries())

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	logr.Sugar().Infow("scheduler stopped")
}
