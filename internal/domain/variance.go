package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ===============================
// Variance categories
// ===============================

// VarianceCategory labels why an unmatched transaction exists.
// Timing categories describe month-end items that reverse next period;
// pattern categories come from description matching; UNEXPLAINED is
// the fallthrough.
type VarianceCategory string

const (
	// month-end timing differences
	CategoryATMSettlement   VarianceCategory = "ATM_SETTLEMENT"
	CategorySharedBranching VarianceCategory = "SHARED_BRANCHING"
	CategoryCheckDeposit    VarianceCategory = "CHECK_DEPOSIT"
	CategoryGiftCard        VarianceCategory = "GIFT_CARD"
	CategoryCBS             VarianceCategory = "CBS_SETTLEMENT"
	CategoryIndirectLoan    VarianceCategory = "INDIRECT_LOAN"

	// description patterns
	CategoryACH     VarianceCategory = "ACH"
	CategoryCheck   VarianceCategory = "CHECK"
	CategoryWire    VarianceCategory = "WIRE"
	CategoryDeposit VarianceCategory = "DEPOSIT"
	CategoryFee     VarianceCategory = "FEE"

	CategoryUnexplained VarianceCategory = "UNEXPLAINED"
)

// IsTiming reports whether the category is a month-end timing
// difference expected to reverse in the next period.
func (c VarianceCategory) IsTiming() bool {
	switch c {
	case CategoryATMSettlement, CategorySharedBranching, CategoryCheckDeposit,
		CategoryGiftCard, CategoryCBS, CategoryIndirectLoan:
		return true
	}
	return false
}

// ===============================
// Resolution
// ===============================

// ResolutionStatus tells whether a variance stayed inside its
// account's threshold or needs review.
type ResolutionStatus string

const (
	ResolutionResolved ResolutionStatus = "RESOLVED"
	ResolutionFlagged  ResolutionStatus = "FLAGGED"
)

// Variance is one classified unmatched transaction.
type Variance struct {
	ID          int64             `json:"id" db:"id"`
	RunID       string            `json:"run_id" db:"run_id"`
	TxnID       int64             `json:"txn_id" db:"txn_id"`
	AccountCode string            `json:"account_code" db:"account_code"`
	Source      TransactionSource `json:"source" db:"source"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Category    VarianceCategory  `json:"category" db:"category"`
	Resolution  ResolutionStatus  `json:"resolution" db:"resolution"`
	Detail      string            `json:"detail,omitempty" db:"detail"`
}

// VarianceSummary aggregates one account's variances against its
// threshold. NetVariance is signed; the threshold comparison uses its
// absolute value.
type VarianceSummary struct {
	AccountCode      string                               `json:"account_code"`
	NetVariance      decimal.Decimal                      `json:"net_variance"`
	Threshold        decimal.Decimal                      `json:"threshold"`
	ThresholdDefault bool                                 `json:"threshold_defaulted"`
	ByCategory       map[VarianceCategory]decimal.Decimal `json:"by_category"`
	Flagged          bool                                 `json:"flagged"`
	FlagReasons      []string                             `json:"flag_reasons,omitempty"`
}

// CarryOverEntry is the expected next-period reversal of a month-end
// timing variance.
type CarryOverEntry struct {
	AccountCode  string           `json:"account_code"`
	Category     VarianceCategory `json:"category"`
	Amount       decimal.Decimal  `json:"amount"`
	ExpectedDate time.Time        `json:"expected_date"`
	Description  string           `json:"description"`
}
