package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-request-client/internal/app"
	"github.com/samvad-hq/samvad-request-client/internal/config"
	"github.com/samvad-hq/samvad-request-client/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reqclient failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("reqclient starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*app.App, error) {
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			logger.ErrorObj("failed to initialize request client", "error", err)
			return nil, err
		}
		return a, nil
	}

	root := newRootCmd(open, os.Stdout)
	return root.ExecuteContext(ctx)
}
