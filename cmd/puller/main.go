package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/dataddo-puller/internal/app"
	"github.com/samvad-hq/dataddo-puller/internal/config"
	"github.com/samvad-hq/dataddo-puller/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "puller start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("puller starting", "config", cfg.LogFields())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	puller, err := app.NewPuller(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize puller", "error", err.Error())
		return err
	}

	if err := puller.Run(ctx); err != nil {
		return fmt.Errorf("puller run: %w", err)
	}

	return nil
}
