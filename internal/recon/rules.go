package recon

import (
	"regexp"

	"reconciliation-service/internal/domain"
)

// RuleSign restricts a rule to one direction of movement.
type RuleSign string

const (
	SignAny    RuleSign = "ANY"
	SignDebit  RuleSign = "DEBIT"  // amount > 0
	SignCredit RuleSign = "CREDIT" // amount < 0
)

// Rule is one classification predicate. All set conditions must hold:
// AccountCode pins the rule to a single account when non-empty,
// Pattern matches against the description when non-nil, Sign checks
// the direction, and MonthEnd restricts the rule to the last two
// calendar days of the transaction's month. Rules are evaluated in
// order and the first hit wins.
type Rule struct {
	Category    domain.VarianceCategory
	AccountCode string
	Pattern     *regexp.Regexp
	Sign        RuleSign
	MonthEnd    bool
}

// Applies reports whether the rule accepts the transaction.
func (r *Rule) Applies(t *domain.Transaction) bool {
	if r.AccountCode != "" && r.AccountCode != t.AccountCode {
		return false
	}
	if r.MonthEnd && !isMonthEnd(t) {
		return false
	}
	switch r.Sign {
	case SignDebit:
		if t.Amount.Sign() <= 0 {
			return false
		}
	case SignCredit:
		if t.Amount.Sign() >= 0 {
			return false
		}
	}
	if r.Pattern != nil && !r.Pattern.MatchString(t.Description) {
		return false
	}
	return true
}

// isMonthEnd reports whether the transaction falls on the last or
// second-last day of its month, the window in which settlement files
// post late.
func isMonthEnd(t *domain.Transaction) bool {
	day := t.Day()
	lastDay := day.AddDate(0, 1, -day.Day()).Day()
	return day.Day() >= lastDay-1
}

var (
	reACH     = regexp.MustCompile(`(?i)ACH|ACH_ADV|ACH_FILE`)
	reCheck   = regexp.MustCompile(`(?i)CHECK|CHK|DRAFT`)
	reWire    = regexp.MustCompile(`(?i)WIRE|WIR`)
	reDeposit = regexp.MustCompile(`(?i)DEP|DEPOSIT`)
	reFee     = regexp.MustCompile(`(?i)FEE|CHARGE|SERVICE`)
)

// DefaultRules is the standing classification table: the month-end
// timing rules first, then the description patterns, most specific
// before most generic. Unmatched transactions that survive every rule
// classify as UNEXPLAINED.
func DefaultRules() []*Rule {
	return []*Rule{
		{Category: domain.CategoryATMSettlement, AccountCode: "74505", Sign: SignCredit, MonthEnd: true},
		{Category: domain.CategorySharedBranching, AccountCode: "74510", Sign: SignAny, MonthEnd: true},
		{Category: domain.CategoryCheckDeposit, AccountCode: "74560", Sign: SignDebit, MonthEnd: true},
		{Category: domain.CategoryGiftCard, AccountCode: "74535", Sign: SignCredit, MonthEnd: true},
		{Category: domain.CategoryCBS, AccountCode: "74550", Sign: SignDebit, MonthEnd: true},
		{Category: domain.CategoryIndirectLoan, AccountCode: "74540", Sign: SignCredit, MonthEnd: true},

		{Category: domain.CategoryACH, Pattern: reACH, Sign: SignAny},
		{Category: domain.CategoryCheck, Pattern: reCheck, Sign: SignAny},
		{Category: domain.CategoryWire, Pattern: reWire, Sign: SignAny},
		{Category: domain.CategoryDeposit, Pattern: reDeposit, Sign: SignAny},
		{Category: domain.CategoryFee, Pattern: reFee, Sign: SignAny},
	}
}
