package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"fincal/internal/amqp"
	"fincal/internal/cli"
	"fincal/internal/config"
	"fincal/internal/log"
	"fincal/internal/sheets"
	gsheet "fincal/internal/sheets/google"
	mem "fincal/internal/sheets/memory"
	"fincal/internal/worker"
)

// memoryJournalLimit bounds the fallback journal when no spreadsheet is set.
const memoryJournalLimit = 1000

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting fincal-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required for the worker")
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	journal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log.WithComponent(logger, log.ComponentAMQP))
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewJournalWorker(journal, log.WithComponent(logger, log.ComponentWorker))

	return cli.RunUntilDone(ctx, logger, cfg.ShutdownTimeout,
		func(ctx context.Context) error {
			err := client.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		// Consumption stops with ctx; in-flight deliveries are acked or
		// requeued by the broker when the channel closes.
		func(context.Context) error { return nil },
	)
}

func openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheets.JournalWriter, error) {
	sheetsLogger := log.WithComponent(logger, log.ComponentSheets)
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - journaling to memory")
		return mem.New(memoryJournalLimit, sheetsLogger), nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, sheetsLogger)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, err
	}
	logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}
