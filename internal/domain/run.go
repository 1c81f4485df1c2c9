package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ===============================
// Run lifecycle
// ===============================

// RunStatus is the reconciliation pipeline state. A run moves forward
// only; there is no resume and no backward transition.
type RunStatus string

const (
	RunIngested   RunStatus = "INGESTED"
	RunMatched    RunStatus = "MATCHED"
	RunClassified RunStatus = "CLASSIFIED"
	RunVerified   RunStatus = "VERIFIED"
	RunBalanced   RunStatus = "BALANCED"
	RunImbalanced RunStatus = "IMBALANCED"
	RunAudited    RunStatus = "AUDITED"
	RunAborted    RunStatus = "ABORTED"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunIngested:   {RunMatched, RunAborted},
	RunMatched:    {RunClassified, RunAborted},
	RunClassified: {RunVerified, RunAborted},
	RunVerified:   {RunBalanced, RunImbalanced, RunAborted},
	RunBalanced:   {RunAudited},
	RunImbalanced: {RunAudited},
	RunAudited:    {},
	RunAborted:    {},
}

// CanTransition reports whether moving from s to next is a legal step
// of the pipeline.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, n := range runTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the run has finished, successfully or not.
func (s RunStatus) Terminal() bool {
	return s == RunAudited || s == RunAborted
}

// ===============================
// Run records
// ===============================

// ReconciliationRun is the persisted run header. Totals and counts are
// zero until the run reaches a terminal state.
type ReconciliationRun struct {
	RunID       string          `json:"run_id" db:"run_id"`
	Status      RunStatus       `json:"status" db:"status"`
	Result      GlobalStatus    `json:"result,omitempty" db:"result"`
	Debits      decimal.Decimal `json:"total_debits" db:"total_debits"`
	Credits     decimal.Decimal `json:"total_credits" db:"total_credits"`
	Imbalance   decimal.Decimal `json:"imbalance_amount" db:"imbalance_amount"`
	TxnCount    int             `json:"txn_count" db:"txn_count"`
	Matched     int             `json:"matched_count" db:"matched_count"`
	Variances   int             `json:"variance_count" db:"variance_count"`
	Ambiguities int             `json:"ambiguity_count" db:"ambiguity_count"`
	Warnings    []string        `json:"warnings,omitempty" db:"warnings"`
	Error       string          `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// ReconciliationRequest is the inbound payload that starts a run.
// Thresholds override stored account thresholds for this run only;
// nil tolerance or epsilon fall back to service defaults.
type ReconciliationRequest struct {
	LedgerTransactions   []*TransactionInput        `json:"ledger_transactions"`
	ExternalTransactions []*TransactionInput        `json:"external_transactions"`
	Thresholds           map[string]decimal.Decimal `json:"thresholds,omitempty"`
	ToleranceDays        *int                       `json:"tolerance_days,omitempty"`
	AmountEpsilon        *decimal.Decimal           `json:"amount_epsilon,omitempty"`
}
