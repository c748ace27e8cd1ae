package main

import (
	"os"
	"time"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	"macrotracker/internal/cli"
	"macrotracker/internal/google"
	applog "macrotracker/internal/log"
	"macrotracker/internal/services"
	"macrotracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting backup-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	stores := cli.InitStore(ctx, logger, cfg)
	defer cli.CloseStore(logger, stores)

	// The API process owns writes, so every week mirror reads the store.
	tracker := services.NewTrackerService(stores.Store,
		services.WithLocation(cfg.Location()),
		services.WithSummaryCacheTTL(0))
	wcfg := worker.Config{
		Exporter:   backup.NewService(stores.Store),
		Sink:       backup.DirSink{Dir: cfg.BackupDir},
		Interval:   cfg.BackupInterval,
		RunOnStart: true,
	}

	creds := google.Credentials{JSON: cfg.GoogleServiceAccountJSON, File: cfg.GoogleServiceAccountFile}
	if cfg.GoogleDriveFolderID != "" {
		sink, err := google.NewDriveSink(ctx, cfg.GoogleDriveFolderID, creds)
		if err != nil {
			logger.Error("Failed to initialize Google Drive client", applog.FieldError, err)
			os.Exit(1)
		}
		wcfg.Sink = sink
		logger.Info("Backups go to Google Drive", "folder_id", cfg.GoogleDriveFolderID)
	} else {
		logger.Info("Backups go to local directory", "dir", cfg.BackupDir)
	}

	if cfg.GoogleSpreadsheetID != "" {
		reporter, err := google.NewSheetsReporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		wcfg.Week = tracker
		wcfg.Reporter = reporter
		logger.Info("Weekly summary mirrored to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		wcfg.Consumer = client
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	w, err := worker.NewBackupWorker(wcfg)
	if err != nil {
		logger.Error("Invalid worker configuration", applog.FieldError, err)
		os.Exit(1)
	}

	if err := w.Run(ctx); err != nil {
		logger.Error("Backup worker stopped", applog.FieldError, err)
		cli.CloseStore(logger, stores)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", "backups", w.Runs())
}
