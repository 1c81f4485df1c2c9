package hrest

import (
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"reconciliation-service/pkg/response"
	"reconciliation-service/pkg/xerrors"
)

// ===============================
// ERROR HANDLING
// ===============================

// handleUsecaseError maps usecase errors onto HTTP statuses and logs
// them with enough context to chase down in production.
func handleUsecaseError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	logger := log.WithFields(log.Fields{
		"error":      err.Error(),
		"error_type": fmt.Sprintf("%T", err),
	})

	var ingErr *xerrors.IngestionError
	var auditErr *xerrors.AuditWriteError

	switch {
	// ===============================
	// NOT FOUND ERRORS
	// ===============================
	case errors.Is(err, xerrors.ErrNotFound),
		errors.Is(err, xerrors.ErrAccountNotFound),
		errors.Is(err, xerrors.ErrRunNotFound):
		logger.WithField("http_status", http.StatusNotFound).Warn("resource not found")
		response.Error(w, http.StatusNotFound, err.Error())

	// ===============================
	// BAD INPUT
	// ===============================
	case errors.As(err, &ingErr):
		logger.WithFields(log.Fields{
			"http_status": http.StatusBadRequest,
			"source":      ingErr.Source,
			"account":     ingErr.AccountCode,
		}).Warn("batch rejected at ingestion")
		response.Error(w, http.StatusBadRequest, ingErr.Error())

	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidRequest):
		logger.WithField("http_status", http.StatusBadRequest).Warn("invalid request")
		response.Error(w, http.StatusBadRequest, err.Error())

	// ===============================
	// CONFLICTS
	// ===============================
	case errors.Is(err, xerrors.ErrDuplicateAccount):
		logger.WithField("http_status", http.StatusConflict).Warn("duplicate account code")
		response.Error(w, http.StatusConflict, err.Error())

	case errors.Is(err, xerrors.ErrRunNotTerminal):
		logger.WithField("http_status", http.StatusConflict).Warn("run has not completed")
		response.Error(w, http.StatusConflict, err.Error())

	// ===============================
	// FATAL RUN FAILURES
	// ===============================
	case errors.As(err, &auditErr):
		logger.WithFields(log.Fields{
			"http_status": http.StatusInternalServerError,
			"audit_seq":   auditErr.Seq,
			"operation":   auditErr.Op,
		}).Error("run aborted: audit trail unavailable")
		response.Error(w, http.StatusInternalServerError, "run aborted: audit trail unavailable")

	default:
		logger.WithField("http_status", http.StatusInternalServerError).Error("unhandled usecase error")
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
