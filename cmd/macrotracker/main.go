package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	"macrotracker/internal/cache"
	"macrotracker/internal/cli"
	apphttp "macrotracker/internal/http"
	applog "macrotracker/internal/log"
	"macrotracker/internal/middleware/ratelimit"
	"macrotracker/internal/realtime"
	"macrotracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	stores := cli.InitStore(context.Background(), logger, cfg)
	defer cli.CloseStore(logger, stores)

	hub := realtime.NewHub(logger.WithComponent(applog.ComponentRealtime).Logger, cfg.AllowedOrigins...)
	tracker := services.NewTrackerService(stores.Store,
		services.WithLocation(cfg.Location()),
		services.WithSummaryCacheTTL(cfg.SummaryCacheTTL),
		services.WithRecentLimit(cfg.RecentLimit),
		services.WithPublisher(hub),
	)

	deps := apphttp.Deps{
		Tracker:        tracker,
		Backups:        backup.NewService(stores.Store),
		Realtime:       hub,
		Logger:         logger,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, remote backups disabled", applog.FieldError, err)
		} else {
			amqpClient = c
			deps.Requester = c
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("Remote backups disabled - no AMQP_URL provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		hub.Close()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err)
			}
		}
	})

	caches := cache.NewManager(tracker.SummaryCache())
	go caches.Run(ctx, time.Minute)

	logger.Info("Starting macrotracker server", "port", cfg.Port, "backend", cfg.DataBackend, "tz", cfg.Location().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	<-caches.Done()
	logger.Info("Server stopped gracefully")
}
