package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/pkg/xerrors"
)

// Recorder is the append-only audit trail for one reconciliation run.
// Appends are serialized through a single critical section, so
// sequence numbers are strictly increasing and gapless and entries
// never interleave, no matter how many workers record concurrently.
// The sequence restarts at zero for every new run identifier; the
// first entry gets seq 1.
//
// A failed append is fatal: the recorder latches the failure and every
// later Record returns it, so the run can only abort.
type Recorder struct {
	runID  string
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	seq    int64
	fail   error
	closed bool
}

func NewRecorder(runID string, sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{
		runID:  runID,
		sink:   sink,
		logger: logger,
	}
}

// Record appends one entry witnessing a reconciliation decision.
// Before and after are digested, never stored verbatim; nil means the
// operation had no state on that side. The returned entry carries the
// assigned sequence number.
func (r *Recorder) Record(ctx context.Context, op domain.AuditOperation, account string, severity domain.AuditSeverity, before, after any, detail string) (*domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, xerrors.ErrRecorderClosed
	}
	if r.fail != nil {
		return nil, r.fail
	}

	entry := &domain.AuditEntry{
		RunID:        r.runID,
		Seq:          r.seq + 1,
		Timestamp:    time.Now().UTC(),
		Operation:    op,
		AccountCode:  account,
		Severity:     severity,
		BeforeDigest: digest(before),
		AfterDigest:  digest(after),
		Detail:       detail,
	}

	if err := r.sink.Append(ctx, entry); err != nil {
		r.fail = &xerrors.AuditWriteError{Seq: entry.Seq, Op: string(op), Err: err}
		r.logger.Error("audit append failed",
			zap.String("run_id", r.runID),
			zap.Int64("seq", entry.Seq),
			zap.String("operation", string(op)),
			zap.Error(err))
		return nil, r.fail
	}

	r.seq = entry.Seq
	return entry, nil
}

// Seq returns the sequence number of the last durably appended entry.
func (r *Recorder) Seq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Close rejects further appends. Closing an already closed recorder
// is a no-op.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// digest hashes the canonical JSON form of a state object. A nil state
// digests to the empty string.
func digest(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
