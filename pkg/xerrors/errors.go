package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Reconciliation
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateAccount  = errors.New("account code already exists")
	ErrRunNotFound       = errors.New("reconciliation run not found")
	ErrRunNotTerminal    = errors.New("reconciliation run has not completed")
	ErrInvalidTransition = errors.New("invalid run state transition")
	ErrRecorderClosed    = errors.New("audit recorder closed")
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IngestionError marks input that must not enter a run: a transaction
// referencing an unknown account, an unparseable sign, a zero date.
// Fatal to the run and never retried, since the input itself is bad.
type IngestionError struct {
	Source      string
	AccountCode string
	Reason      string
}

func (e *IngestionError) Error() string {
	if e.AccountCode != "" {
		return fmt.Sprintf("ingestion failed for %s transaction on account %s: %s", e.Source, e.AccountCode, e.Reason)
	}
	return fmt.Sprintf("ingestion failed for %s transaction: %s", e.Source, e.Reason)
}

// AuditWriteError wraps a failed audit append. The run must abort: a
// silently lost audit entry would break the traceability the trail
// exists to provide.
type AuditWriteError struct {
	Seq int64
	Op  string
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit append failed at seq %d (%s): %v", e.Seq, e.Op, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }
