package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"macrotracker/internal/amqp"
	"macrotracker/internal/backup"
	applog "macrotracker/internal/log"
)

type (
	importResponse struct {
		Inserted int    `json:"inserted"`
		Skipped  int    `json:"skipped"`
		Failed   int    `json:"failed"`
		Message  string `json:"message"`
	}

	backupRequestResponse struct {
		RequestID string `json:"requestId"`
	}
)

// handleExportBackup streams the backup as a file download.
func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := s.backups.Export(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Backup export failed", applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: backup.MsgExportFailed})
		return
	}

	name := backup.Filename(s.now())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImportBackup imports the request body. Record failures still
// answer 200 with the failed count; a rejected file answers 422.
func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBody))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read backup: %v", errBadRequest, err))
		return
	}

	res, err := s.backups.Import(r.Context(), data)
	rejected := errors.Is(err, backup.ErrUnsupportedSchema) || errors.Is(err, backup.ErrInvalidData)
	if !rejected {
		// Targets are overwritten by any accepted backup.
		s.tracker.InvalidateSummaries(r.Context())
	}

	body := importResponse{
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Message:  backup.StatusMessage(res, err),
	}
	fields := applog.NewFields().WithImport(res.Inserted, res.Skipped, res.Failed).WithError(err)

	status := http.StatusOK
	switch {
	case rejected:
		status = http.StatusUnprocessableEntity
		logger.WarnContext(r.Context(), "Backup rejected", fields.ToSlice()...)
	case err != nil && res == (backup.ImportResult{}):
		status = http.StatusInternalServerError
		logger.ErrorContext(r.Context(), "Backup import failed", fields.ToSlice()...)
	default:
		logger.InfoContext(r.Context(), "Backup imported", fields.ToSlice()...)
	}
	writeJSON(w, status, body)
}

// handleRequestBackup queues a backup for the worker.
func (s *Server) handleRequestBackup(w http.ResponseWriter, r *http.Request) {
	if s.requester == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "remote backups are not configured"})
		return
	}
	msg := amqp.NewBackupRequestMessage(amqp.ReasonManual)
	if err := s.requester.PublishBackupRequest(r.Context(), msg); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Backup request failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "could not queue backup"})
		return
	}
	writeJSON(w, http.StatusAccepted, backupRequestResponse{RequestID: msg.RequestID})
}
