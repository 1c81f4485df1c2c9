package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalStatus is the run-level balance verdict.
type GlobalStatus string

const (
	StatusBalanced   GlobalStatus = "BALANCED"
	StatusImbalanced GlobalStatus = "IMBALANCED"
)

// BalanceReport is one account's debit/credit aggregation.
// Debits sum the positive amounts, credits the absolute value of the
// negative ones, so both totals are non-negative and
// Net = Debits - Credits.
type BalanceReport struct {
	ID          int64           `json:"id" db:"id"`
	RunID       string          `json:"run_id" db:"run_id"`
	AccountCode string          `json:"account_code" db:"account_code"`
	Debits      decimal.Decimal `json:"total_debits" db:"total_debits"`
	Credits     decimal.Decimal `json:"total_credits" db:"total_credits"`
	Net         decimal.Decimal `json:"net" db:"net"`
	TxnCount    int             `json:"txn_count" db:"txn_count"`
	Balanced    bool            `json:"balanced" db:"balanced"`
}

// ReconciliationResult is the terminal outcome of a run.
type ReconciliationResult struct {
	RunID       string             `json:"run_id"`
	Status      GlobalStatus       `json:"status"`
	Debits      decimal.Decimal    `json:"total_debits"`
	Credits     decimal.Decimal    `json:"total_credits"`
	Imbalance   decimal.Decimal    `json:"imbalance_amount"`
	PerAccount  []*BalanceReport   `json:"per_account"`
	Summaries   []*VarianceSummary `json:"variance_summaries,omitempty"`
	CarryOvers  []*CarryOverEntry  `json:"carry_overs,omitempty"`
	MatchRate   decimal.Decimal    `json:"match_rate"`
	Matched     int                `json:"matched_count"`
	Variances   int                `json:"variance_count"`
	Ambiguities int                `json:"ambiguity_count"`
}

// AccountHistory is one account's reconciliation record across
// completed runs in a date window, for chasing carry-overs that were
// expected to reverse.
type AccountHistory struct {
	AccountCode string           `json:"account_code"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Variances   []*Variance      `json:"variances"`
	Reports     []*BalanceReport `json:"balance_reports"`
}
