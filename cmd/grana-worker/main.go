// grana-worker consumes entity change events and republishes the
// annual report to Google Sheets.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"grana/internal/amqp"
	"grana/internal/config"
	"grana/internal/export"
	gsheet "grana/internal/export/google"
	"grana/internal/export/memory"
	applog "grana/internal/log"
	"grana/internal/storage"
	"grana/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting grana-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Export destination: Google Sheets when configured, otherwise an
	// in-memory sink so the consumer still drains the queue.
	var writer export.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.ReportSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memory.New()
		logger.Info("Google Sheets disabled - reports stay in memory")
	}

	exportWorker := worker.NewExportWorker(repo, writer, cfg.CommittedBalanceDefault)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqp.ConsumeEntityChangesWithReconnect(ctx,
			cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangeQueue, cfg.AMQPAlertQueue,
			func(msg *amqp.EntityChangeMessage) error {
				return exportWorker.HandleChange(ctx, msg)
			})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
