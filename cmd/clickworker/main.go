// Command clickworker records click jobs published by the server to NATS.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wadjakorntonsri/trimrr/pkg/app"
	"github.com/wadjakorntonsri/trimrr/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunWorker(ctx, cfg, logger); err != nil {
		logger.Error("click worker stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
