package recon

import (
	"sort"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// VerifyResult is the outcome of balance verification across a run.
type VerifyResult struct {
	Reports   []*domain.BalanceReport
	Status    domain.GlobalStatus
	Debits    decimal.Decimal
	Credits   decimal.Decimal
	Imbalance decimal.Decimal
}

// Verify aggregates debits and credits per account and decides the
// run-level balance status. Only ledger-side transactions post to the
// general ledger, so external statements are skipped. Debits sum the
// positive amounts and credits the absolute value of the negative
// ones; an account is balanced when its absolute net stays within its
// variance threshold, and the run is BALANCED when every account is
// balanced and total debits equal total credits within globalEpsilon.
// Reports come back sorted by account code. An empty input verifies as
// BALANCED with no reports.
func Verify(txns []*domain.Transaction, ts *ThresholdSet, globalEpsilon decimal.Decimal) *VerifyResult {
	byAccount := map[string]*domain.BalanceReport{}
	for _, t := range txns {
		if t.Source != domain.SourceLedger {
			continue
		}
		r, ok := byAccount[t.AccountCode]
		if !ok {
			r = &domain.BalanceReport{
				AccountCode: t.AccountCode,
				Debits:      decimal.Zero,
				Credits:     decimal.Zero,
			}
			byAccount[t.AccountCode] = r
		}
		if t.Amount.Sign() >= 0 {
			r.Debits = r.Debits.Add(t.Amount)
		} else {
			r.Credits = r.Credits.Add(t.Amount.Neg())
		}
		r.TxnCount++
	}

	res := &VerifyResult{
		Reports: make([]*domain.BalanceReport, 0, len(byAccount)),
		Debits:  decimal.Zero,
		Credits: decimal.Zero,
	}
	allBalanced := true
	for _, r := range byAccount {
		r.Net = r.Debits.Sub(r.Credits)
		threshold, _ := ts.For(r.AccountCode)
		r.Balanced = r.Net.Abs().LessThanOrEqual(threshold)
		if !r.Balanced {
			allBalanced = false
		}
		res.Debits = res.Debits.Add(r.Debits)
		res.Credits = res.Credits.Add(r.Credits)
		res.Reports = append(res.Reports, r)
	}
	sort.Slice(res.Reports, func(i, j int) bool { return res.Reports[i].AccountCode < res.Reports[j].AccountCode })

	res.Imbalance = res.Debits.Sub(res.Credits).Abs()
	if allBalanced && res.Imbalance.LessThanOrEqual(globalEpsilon) {
		res.Status = domain.StatusBalanced
	} else {
		res.Status = domain.StatusImbalanced
	}
	return res
}
