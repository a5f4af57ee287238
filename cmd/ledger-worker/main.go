package main

import (
	"context"
	"errors"
	"os"
	"time"

	"livrocaixa/internal/amqp"
	"livrocaixa/internal/cli"
	"livrocaixa/internal/core"
	gsheet "livrocaixa/internal/sheets/google"
	"livrocaixa/internal/worker"
)

// Months re-exported at startup to catch up with events lost while down.
const catchUpMonths = 3

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	backend := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	sheetsClient, err := gsheet.NewFromConfig(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Balances are cached per process, so there is nothing to invalidate here.
	ledgerWorker := worker.NewLedgerWorker(backend.Store, sheetsClient, nil, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup export", "months", catchUpMonths)
	if err := ledgerWorker.ExportRecent(ctx, core.DateOf(time.Now()).MonthKey(), catchUpMonths); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	go func() {
		err := amqpClient.ConsumeLedgerChanged(ctx, ledgerWorker.HandleLedgerChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
