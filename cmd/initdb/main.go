// Command initdb creates the budgetme database when missing and applies the schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaqubm/budgetme-backend/config"
	"github.com/jaqubm/budgetme-backend/internal/observability"
	"github.com/jaqubm/budgetme-backend/repositories/postgres"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "budgetme-initdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := postgres.EnsureDatabase(ctx, cfg.Database, logger); err != nil {
		logger.Error("failed to ensure database", zap.Error(err))
		return err
	}

	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", zap.Error(err))
		return err
	}

	logger.Info("database ready", zap.String("database", cfg.Database.DatabaseName()))
	return nil
}
