package main

import (
	"context"
	"os"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cli"
	"budgetwise/internal/config"
	"budgetwise/internal/log"
	"budgetwise/internal/sheets"
	gsheet "budgetwise/internal/sheets/google"
	memsheet "budgetwise/internal/sheets/memory"
	"budgetwise/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(cli.RoleWorker)
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting budgetwise-worker", log.FieldOperation, log.OpStartup)

	ctx, done := cli.GracefulShutdown(context.Background(), logger, cfg.ShutdownTimeout, nil)

	be := cli.OpenStore(ctx, cfg, logger)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Store cleanup failed", log.FieldError, err)
		}
	}()

	exporter := newExporter(ctx, cfg, logger)

	// A nil source leaves the worker on periodic sweeps only.
	var src worker.EventSource
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		src = client
	} else {
		logger.Info("AMQP disabled, relying on periodic sweeps", "interval", cfg.SyncInterval)
	}

	w := worker.NewExportWorker(be.Store, exporter, cfg.SyncBatchSize, logger)

	logger.Info("Performing startup sync check...")
	if err := w.StartupSyncCheck(ctx); err != nil {
		// Not fatal: the periodic sweep retries.
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if err := w.Run(ctx, src, cfg.SyncInterval); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}

// newExporter returns the Google Sheets client, or an in-memory exporter
// when no spreadsheet is configured.
func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) sheets.Exporter {
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
		return memsheet.New()
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
