package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one reconcilable clearing account. Accounts are read-only
// inputs to a reconciliation run; thresholds never change mid-run.
type Account struct {
	ID                 int64                      `json:"id" db:"id"`
	Code               string                     `json:"code" db:"code"`
	Name               string                     `json:"name" db:"name"`
	VarianceThreshold  *decimal.Decimal           `json:"variance_threshold,omitempty" db:"variance_threshold"`
	CategoryThresholds map[string]decimal.Decimal `json:"category_thresholds,omitempty" db:"category_thresholds"`
	IsActive           bool                       `json:"is_active" db:"is_active"`
	CreatedAt          time.Time                  `json:"-"`
	UpdatedAt          time.Time                  `json:"-"`
}

type AccountCreate struct {
	Code               string                     `json:"code"`
	Name               string                     `json:"name"`
	VarianceThreshold  *decimal.Decimal           `json:"variance_threshold,omitempty"`
	CategoryThresholds map[string]decimal.Decimal `json:"category_thresholds,omitempty"`
}

type AccountFilter struct {
	Code     *string
	IsActive *bool
}

// DefaultVarianceThreshold substitutes for accounts with no configured
// threshold. The substitution is reported as a warning on the run,
// never as an error.
var DefaultVarianceThreshold = decimal.RequireFromString("1000.00")

// DefaultClearingAccounts is the clearing-account universe seeded on a
// fresh deployment.
var DefaultClearingAccounts = []*AccountCreate{
	{Code: "74400", Name: "Corporate settlement"},
	{Code: "74505", Name: "ATM settlement"},
	{Code: "74510", Name: "Shared branching"},
	{Code: "74515", Name: "Cash letter correspondence"},
	{Code: "74520", Name: "Image cash letter presentment 1591"},
	{Code: "74525", Name: "Reserve pass-through"},
	{Code: "74530", Name: "ACH advice file"},
	{Code: "74535", Name: "Gift card programs"},
	{Code: "74540", Name: "CRIF indirect loans"},
	{Code: "74550", Name: "Cooperative business services"},
	{Code: "74560", Name: "Image cash letter presentment 1590"},
	{Code: "74570", Name: "ACH originations debit"},
}
