package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bunkhouse/cmd/consumers/jobs"
	"bunkhouse/internal/config"
	"bunkhouse/internal/consumers"
	"bunkhouse/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	logger.Get().Info("Starting consumers service")

	// Consumers get their own NATS client id
	cfg.NATS.ClientID = "bunkhouse-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	// The expiry reaper shares this process's connections.
	reaperCtx, cancelReaper := context.WithCancel(context.Background())
	reaper := jobs.NewBookingExpirationJob(consumerService.Services().Bookings, cfg.ReaperInterval)
	reaper.Start(reaperCtx)

	logger.Get().Info("Consumers service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service")

	reaper.Stop()
	cancelReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(ctx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
