package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lojista/internal/amqp"
	"lojista/internal/config"
	applog "lojista/internal/log"
	"lojista/internal/sheets"
	gsheet "lojista/internal/sheets/google"
	mem "lojista/internal/sheets/memory"
	"lojista/internal/storage"
	"lojista/internal/worker"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting lojista-worker")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backup ledger: Google Sheets when configured, in-memory otherwise so
	// the sync pipeline still drains in development.
	var backup sheets.LedgerWriter
	if cfg.SheetsConfigured() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		backup = client
		logger.Info("Google Sheets backup ledger initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		backup = mem.New()
		logger.Info("Google Sheets not configured, using in-memory backup ledger")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, backup, cfg.SyncBatchSize)

	// Recover anything missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
		// Keep running; the periodic sweep retries.
	}

	go func() {
		err := amqpClient.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
			return syncWorker.HandleEvent(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Event consumption failed", "error", err)
		}
		cancel()
	}()

	syncTicker := time.NewTicker(cfg.SyncInterval)
	defer syncTicker.Stop()
	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	defer reconcileTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-syncTicker.C:
				if err := syncWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			case <-reconcileTicker.C:
				if err := syncWorker.Reconcile(ctx); err != nil {
					logger.Error("Reconciliation failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight deliveries a moment to settle.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
