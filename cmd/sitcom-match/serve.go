package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/app"
	"github.com/kapu/sitcom-match-go/internal/config"
	"github.com/kapu/sitcom-match-go/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Sitcom match backend starting...",
		zap.Int("port", cfg.Server.Port),
		zap.String("strategy", cfg.Analysis.Strategy),
		zap.String("log_level", cfg.Logging.Level),
		zap.Bool("diagnostics", cfg.Server.Diagnostics),
	)

	buildCtx, buildCancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger)
	buildCancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := container.Server.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
