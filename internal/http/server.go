package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	applog "macrotracker/internal/log"
	"macrotracker/internal/middleware/ratelimit"
	"macrotracker/internal/middleware/security"
	"macrotracker/internal/middleware/trace"
	"macrotracker/internal/services"
)

type (
	// Backups is the part of backup.Service the API needs.
	Backups interface {
		Export(ctx context.Context) ([]byte, error)
		Import(ctx context.Context, data []byte) (backup.ImportResult, error)
	}

	// BackupRequester queues a backup for the worker.
	BackupRequester interface {
		PublishBackupRequest(ctx context.Context, msg *amqp.BackupRequestMessage) error
	}
)

// Deps are the collaborators of the API. Requester and Realtime are
// optional. A zero RateLimit uses ratelimit.DefaultConfig.
type Deps struct {
	Tracker   *services.TrackerService
	Backups   Backups
	Requester BackupRequester
	Realtime  http.Handler
	Logger    *applog.Logger

	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	tracker   *services.TrackerService
	backups   Backups
	requester BackupRequester
	trace     *trace.Middleware
	limiter   *ratelimit.Limiter
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	resolver, err := security.NewIPResolver(deps.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		tracker:   deps.Tracker,
		backups:   deps.Backups,
		requester: deps.Requester,
		trace:     trace.NewMiddleware(resolver.ClientIP),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/recent", s.handleRecentEntries)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/targets", s.handleGetTargets)
	mux.HandleFunc("PUT /api/targets", s.handleUpdateTargets)
	mux.HandleFunc("GET /api/summary/day", s.handleDaySummary)
	mux.HandleFunc("GET /api/summary/week", s.handleWeekSummary)

	mux.HandleFunc("GET /api/food-templates", s.handleListFoodTemplates)
	mux.HandleFunc("POST /api/food-templates", s.handleCreateFoodTemplate)
	mux.HandleFunc("DELETE /api/food-templates/{id}", s.handleDeleteFoodTemplate)
	mux.HandleFunc("POST /api/food-templates/{id}/log", s.handleLogFoodTemplate)

	mux.HandleFunc("GET /api/meal-templates", s.handleListMealTemplates)
	mux.HandleFunc("POST /api/meal-templates", s.handleCreateMealTemplate)
	mux.HandleFunc("DELETE /api/meal-templates/{id}", s.handleDeleteMealTemplate)
	mux.HandleFunc("POST /api/meal-templates/{id}/log", s.handleLogMealTemplate)

	mux.HandleFunc("GET /api/backup", s.handleExportBackup)
	mux.HandleFunc("POST /api/backup", s.handleImportBackup)
	mux.HandleFunc("POST /api/backup/remote", s.handleRequestBackup)

	if deps.Realtime != nil {
		mux.Handle("GET /ws", deps.Realtime)
	}

	withLogger := applog.Middleware(logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(resolver.ClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Middleware(withLogger(headers.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Metrics reports request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.Metrics()
}

// Shutdown gracefully shuts down the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the store answers a read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.tracker.Targets(ctx); err != nil {
		slog.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
