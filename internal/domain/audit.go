package domain

import "time"

// ===============================
// Audit operations and severities
// ===============================

// AuditOperation names what an audit entry witnesses. The three
// mutating operations (match.accepted, variance.classified,
// balance.computed) account for every state change a run makes; the
// rest are informational markers.
type AuditOperation string

const (
	OpRunStarted         AuditOperation = "run.started"
	OpMatchAccepted      AuditOperation = "match.accepted"
	OpMatchAmbiguity     AuditOperation = "match.ambiguity_resolved"
	OpVarianceClassified AuditOperation = "variance.classified"
	OpThresholdDefaulted AuditOperation = "threshold.defaulted"
	OpBalanceComputed    AuditOperation = "balance.computed"
	OpStatusComputed     AuditOperation = "run.status_computed"
	OpRunFinalized       AuditOperation = "run.finalized"
)

// Mutating reports whether the operation changes run state, as opposed
// to annotating it.
func (op AuditOperation) Mutating() bool {
	switch op {
	case OpMatchAccepted, OpVarianceClassified, OpBalanceComputed:
		return true
	}
	return false
}

type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "INFO"
	SeverityWarning  AuditSeverity = "WARNING"
	SeverityCritical AuditSeverity = "CRITICAL"
)

// AuditEntry is one record on a run's audit trail. Seq is assigned by
// the recorder and is strictly increasing within a run with no gaps;
// the digests are content hashes of the state before and after the
// operation, empty when a side has no state.
type AuditEntry struct {
	ID           int64          `json:"id" db:"id"`
	RunID        string         `json:"run_id" db:"run_id"`
	Seq          int64          `json:"seq" db:"seq"`
	Timestamp    time.Time      `json:"timestamp" db:"created_at"`
	Operation    AuditOperation `json:"operation" db:"operation"`
	AccountCode  string         `json:"account_code,omitempty" db:"account_code"`
	Severity     AuditSeverity  `json:"severity" db:"severity"`
	BeforeDigest string         `json:"before_digest,omitempty" db:"before_digest"`
	AfterDigest  string         `json:"after_digest,omitempty" db:"after_digest"`
	Detail       string         `json:"detail,omitempty" db:"detail"`
}
