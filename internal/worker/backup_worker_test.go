package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	"macrotracker/internal/core"
	"macrotracker/internal/services"
	"macrotracker/internal/store/memory"
)

type fakeExporter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExporter) ExportTo(ctx context.Context, sink backup.Sink) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "backup.json", sink.Save(ctx, "backup.json", []byte("{}"))
}

type memSink struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *memSink) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return nil
}

type fakeReporter struct {
	mu    sync.Mutex
	weeks [][]core.DaySummary
	err   error
}

func (r *fakeReporter) ReportWeek(_ context.Context, week []core.DaySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weeks = append(r.weeks, week)
	return r.err
}

// oneShotConsumer delivers its messages then waits for cancellation.
type oneShotConsumer struct {
	msgs    []*amqp.BackupRequestMessage
	results chan error
}

func (c *oneShotConsumer) ConsumeBackupRequests(ctx context.Context, handler amqp.Handler) error {
	for _, m := range c.msgs {
		c.results <- handler(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestNewBackupWorkerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing exporter", Config{Sink: &memSink{}, Interval: time.Hour}},
		{"missing sink", Config{Exporter: &fakeExporter{}, Interval: time.Hour}},
		{"zero interval", Config{Exporter: &fakeExporter{}, Sink: &memSink{}}},
		{"reporter without week", Config{Exporter: &fakeExporter{}, Sink: &memSink{}, Interval: time.Hour, Reporter: &fakeReporter{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBackupWorker(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunOnceWritesBackupAndMirrorsWeek(t *testing.T) {
	ctx := context.Background()
	tracker := services.NewTrackerService(memory.New(), services.WithLocation(time.UTC))
	reporter := &fakeReporter{err: errors.New("sheets down")}
	dir := t.TempDir()

	w, err := NewBackupWorker(Config{
		Exporter: backup.NewService(memory.New()),
		Sink:     backup.DirSink{Dir: dir},
		Week:     tracker,
		Reporter: reporter,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewBackupWorker: %v", err)
	}

	if err := w.RunOnce(ctx, amqp.ReasonManual); err != nil {
		t.Fatalf("RunOnce should ignore mirror failures: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "macro-tracker-backup-*.json"))
	if len(files) != 1 {
		t.Fatalf("expected one backup file, got %v", files)
	}
	if data, _ := os.ReadFile(files[0]); len(data) == 0 {
		t.Fatal("backup file is empty")
	}
	if len(reporter.weeks) != 1 || len(reporter.weeks[0]) != core.WeekLength {
		t.Fatalf("week not mirrored: %v", reporter.weeks)
	}
	if w.Runs() != 1 {
		t.Fatalf("Runs() = %d", w.Runs())
	}
}

func TestRunOnceExportFailure(t *testing.T) {
	exp := &fakeExporter{err: errors.New("disk full")}
	reporter := &fakeReporter{}
	w, _ := NewBackupWorker(Config{Exporter: exp, Sink: &memSink{}, Interval: time.Hour, Reporter: reporter, Week: services.NewTrackerService(memory.New())})

	if err := w.RunOnce(context.Background(), amqp.ReasonManual); err == nil {
		t.Fatal("expected export error")
	}
	if len(reporter.weeks) != 0 || w.Runs() != 0 {
		t.Fatal("nothing should run after a failed export")
	}
}

func TestRunHandlesRequestsAndSchedule(t *testing.T) {
	exp := &fakeExporter{}
	consumer := &oneShotConsumer{
		msgs:    []*amqp.BackupRequestMessage{amqp.NewBackupRequestMessage(amqp.ReasonManual)},
		results: make(chan error, 1),
	}
	w, err := NewBackupWorker(Config{
		Exporter:   exp,
		Sink:       &memSink{},
		Consumer:   consumer,
		Interval:   20 * time.Millisecond,
		RunOnStart: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := <-consumer.results; err != nil {
		t.Fatalf("handler error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for exp.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d exports before deadline", exp.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
