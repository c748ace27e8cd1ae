package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	"macrotracker/internal/core"
	applog "macrotracker/internal/log"
)

type (
	Exporter interface {
		ExportTo(ctx context.Context, sink backup.Sink) (string, error)
	}

	// WeekSource builds the seven summaries ending on a day.
	WeekSource interface {
		WeekSummary(ctx context.Context, end time.Time) ([]core.DaySummary, error)
	}

	WeekReporter interface {
		ReportWeek(ctx context.Context, week []core.DaySummary) error
	}

	Consumer interface {
		ConsumeBackupRequests(ctx context.Context, handler amqp.Handler) error
	}
)

// Config wires the optional parts of a BackupWorker. Sink and Exporter
// are required; Reporter, Week and Consumer may be nil.
type Config struct {
	Exporter Exporter
	Sink     backup.Sink
	Week     WeekSource
	Reporter WeekReporter
	Consumer Consumer
	Interval time.Duration
	// RunOnStart takes a backup as soon as Run starts, covering requests
	// missed while the worker was down.
	RunOnStart bool
}

// BackupWorker takes backups on a schedule and on request.
type BackupWorker struct {
	cfg  Config
	now  func() time.Time
	runs atomic.Int64
}

func NewBackupWorker(cfg Config) (*BackupWorker, error) {
	if cfg.Exporter == nil || cfg.Sink == nil {
		return nil, errors.New("backup worker needs an exporter and a sink")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid backup interval %v", cfg.Interval)
	}
	if cfg.Reporter != nil && cfg.Week == nil {
		return nil, errors.New("week reporter configured without a week source")
	}
	return &BackupWorker{cfg: cfg, now: time.Now}, nil
}

// Runs is the number of backups written successfully.
func (w *BackupWorker) Runs() int64 {
	return w.runs.Load()
}

// RunOnce writes one backup and then mirrors the current week. A failed
// mirror is logged but does not fail the backup.
func (w *BackupWorker) RunOnce(ctx context.Context, reason string) error {
	start := w.now()
	name, err := w.cfg.Exporter.ExportTo(ctx, w.cfg.Sink)
	if err != nil {
		return fmt.Errorf("export backup: %w", err)
	}
	w.runs.Add(1)

	slog.InfoContext(ctx, "Backup completed",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldBackupName, name,
		"reason", reason,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if w.cfg.Reporter != nil {
		if err := w.reportWeek(ctx); err != nil {
			slog.WarnContext(ctx, "Week summary mirror failed",
				applog.FieldComponent, applog.ComponentWorker,
				applog.FieldError, err)
		}
	}
	return nil
}

// HandleBackupRequest is the AMQP handler.
func (w *BackupWorker) HandleBackupRequest(ctx context.Context, msg *amqp.BackupRequestMessage) error {
	slog.InfoContext(ctx, "Processing backup request",
		applog.FieldComponent, applog.ComponentWorker,
		"request_id", msg.RequestID,
		"requested_at", msg.RequestedAt)
	return w.RunOnce(ctx, msg.Reason)
}

// Run blocks until ctx is cancelled or the consumer fails for good.
func (w *BackupWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.runSchedule(ctx) })
	if w.cfg.Consumer != nil {
		g.Go(func() error { return w.cfg.Consumer.ConsumeBackupRequests(ctx, w.HandleBackupRequest) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *BackupWorker) runSchedule(ctx context.Context) error {
	if w.cfg.RunOnStart {
		w.runLogged(ctx, amqp.ReasonSchedule)
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Backup schedule started",
		applog.FieldComponent, applog.ComponentWorker,
		"interval", w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runLogged(ctx, amqp.ReasonSchedule)
		}
	}
}

func (w *BackupWorker) runLogged(ctx context.Context, reason string) {
	if err := w.RunOnce(ctx, reason); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Scheduled backup failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldError, err)
	}
}

func (w *BackupWorker) reportWeek(ctx context.Context) error {
	week, err := w.cfg.Week.WeekSummary(ctx, w.now())
	if err != nil {
		return fmt.Errorf("build week summary: %w", err)
	}
	return w.cfg.Reporter.ReportWeek(ctx, week)
}
