package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchResult pairs one ledger transaction with one external
// transaction. AmountDelta and DayDelta record how far inside the
// tolerance window the pair sat; exact matches carry zeros.
type MatchResult struct {
	ID            int64           `json:"id" db:"id"`
	RunID         string          `json:"run_id" db:"run_id"`
	AccountCode   string          `json:"account_code" db:"account_code"`
	LedgerTxnID   int64           `json:"ledger_txn_id" db:"ledger_txn_id"`
	ExternalTxnID int64           `json:"external_txn_id" db:"external_txn_id"`
	AmountDelta   decimal.Decimal `json:"amount_delta" db:"amount_delta"`
	DayDelta      int             `json:"day_delta" db:"day_delta"`
	Rationale     string          `json:"rationale,omitempty" db:"rationale"`
	MatchedAt     time.Time       `json:"matched_at" db:"matched_at"`
}

// MatchAmbiguity records a ledger transaction that had more than one
// admissible counterpart. The pairing recorded in Matches is the
// resolved winner; the ambiguity itself is informational only.
type MatchAmbiguity struct {
	LedgerTxnID    int64   `json:"ledger_txn_id"`
	CandidateIDs   []int64 `json:"candidate_ids"`
	ChosenID       int64   `json:"chosen_id"`
	Rationale      string  `json:"rationale"`
	ChosenDayDelta int     `json:"chosen_day_delta"`
}

// MatchSet is the complete outcome of matching one run's transactions.
// Every ingested transaction appears exactly once: either inside a
// MatchResult or on one of the unmatched lists.
type MatchSet struct {
	Matches           []*MatchResult    `json:"matches"`
	UnmatchedLedger   []*Transaction    `json:"unmatched_ledger"`
	UnmatchedExternal []*Transaction    `json:"unmatched_external"`
	Ambiguities       []*MatchAmbiguity `json:"ambiguities,omitempty"`
}

// MatchRate is matched ledger transactions over total ledger
// transactions, as a percentage. A run with no ledger side scores 100.
func (ms *MatchSet) MatchRate() decimal.Decimal {
	matched := int64(len(ms.Matches))
	total := matched + int64(len(ms.UnmatchedLedger))
	if total == 0 {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(matched * 100).Div(decimal.NewFromInt(total)).Round(2)
}
