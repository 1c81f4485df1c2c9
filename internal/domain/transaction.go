package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ===============================
// Transaction sources and signs
// ===============================

// TransactionSource tells which side of the reconciliation a
// transaction came from.
type TransactionSource string

const (
	SourceLedger   TransactionSource = "LEDGER"   // internal general-ledger extract
	SourceExternal TransactionSource = "EXTERNAL" // bank / processor statement
)

func (s TransactionSource) IsValid() bool {
	return s == SourceLedger || s == SourceExternal
}

// TransactionSign is the optional explicit debit/credit marker on an
// inbound record. When present it overrides the sign of the raw amount.
type TransactionSign string

const (
	SignDebit  TransactionSign = "DR"
	SignCredit TransactionSign = "CR"
	SignNone   TransactionSign = ""
)

func (s TransactionSign) IsValid() bool {
	switch TransactionSign(strings.ToUpper(string(s))) {
	case SignDebit, SignCredit, SignNone:
		return true
	default:
		return false
	}
}

// ===============================
// Inbound and normalized shapes
// ===============================

// TransactionInput is the wire shape of one inbound record, before
// normalization. Amount is the raw figure as submitted; Sign, when set,
// dictates the direction regardless of the amount's own sign.
type TransactionInput struct {
	AccountCode string          `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Sign        TransactionSign `json:"sign,omitempty"`
	Description string          `json:"description"`
}

// SignedAmount normalizes the record to a single signed figure:
// debits positive, credits negative.
func (in *TransactionInput) SignedAmount() decimal.Decimal {
	switch strings.ToUpper(string(in.Sign)) {
	case string(SignDebit):
		return in.Amount.Abs()
	case string(SignCredit):
		return in.Amount.Abs().Neg()
	default:
		return in.Amount
	}
}

// Transaction is one normalized record inside a run. IDs are assigned
// at ingestion in input order, ledger side first, and never change.
// MatchID is set at most once, when the matcher pairs the transaction.
type Transaction struct {
	ID          int64             `json:"id" db:"id"`
	RunID       string            `json:"run_id" db:"run_id"`
	AccountCode string            `json:"account_code" db:"account_code"`
	Date        time.Time         `json:"date" db:"txn_date"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Description string            `json:"description" db:"description"`
	Source      TransactionSource `json:"source" db:"source"`
	MatchID     *int64            `json:"match_id,omitempty" db:"match_id"`
}

// Day truncates the transaction date to a UTC calendar day. Matching
// tolerance is counted in whole days, so intra-day times never matter.
func (t *Transaction) Day() time.Time {
	y, m, d := t.Date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
