package recon

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// ===============================
// Thresholds
// ===============================

// ThresholdSet resolves variance thresholds for a run. Request-level
// overrides and stored account thresholds live in ByAccount; any
// account missing there falls back to Default. ByCategory holds the
// optional per-account, per-category limits.
type ThresholdSet struct {
	Default    decimal.Decimal
	ByAccount  map[string]decimal.Decimal
	ByCategory map[string]map[domain.VarianceCategory]decimal.Decimal
}

// For returns the threshold for an account and whether the default
// was substituted.
func (ts *ThresholdSet) For(account string) (decimal.Decimal, bool) {
	if v, ok := ts.ByAccount[account]; ok {
		return v, false
	}
	return ts.Default, true
}

// CategoryFor returns the configured category limit for an account,
// if any.
func (ts *ThresholdSet) CategoryFor(account string, cat domain.VarianceCategory) (decimal.Decimal, bool) {
	limits, ok := ts.ByCategory[account]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := limits[cat]
	return v, ok
}

// ===============================
// Classification
// ===============================

// Classify labels every unmatched transaction with the first rule that
// accepts it, falling through to UNEXPLAINED, then resolves each
// account's variances against its threshold: when the absolute net
// unmatched amount stays within the threshold every variance on the
// account is RESOLVED, otherwise every one is FLAGGED. Variances come
// back in input order, summaries sorted by account code.
func Classify(unmatched []*domain.Transaction, rules []*Rule, ts *ThresholdSet) ([]*domain.Variance, []*domain.VarianceSummary) {
	variances := make([]*domain.Variance, 0, len(unmatched))
	for _, t := range unmatched {
		variances = append(variances, categorize(t, rules))
	}

	summaries := summarize(variances, ts)
	flagged := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		flagged[s.AccountCode] = s.NetVariance.Abs().GreaterThan(s.Threshold)
	}
	for _, v := range variances {
		if flagged[v.AccountCode] {
			v.Resolution = domain.ResolutionFlagged
		} else {
			v.Resolution = domain.ResolutionResolved
		}
	}
	return variances, summaries
}

// categorize assigns the first matching rule's category. Resolution is
// filled in later, once the account's net variance is known.
func categorize(t *domain.Transaction, rules []*Rule) *domain.Variance {
	v := &domain.Variance{
		RunID:       t.RunID,
		TxnID:       t.ID,
		AccountCode: t.AccountCode,
		Source:      t.Source,
		Amount:      t.Amount,
		Category:    domain.CategoryUnexplained,
		Detail:      "no classification rule matched",
	}
	for _, r := range rules {
		if !r.Applies(t) {
			continue
		}
		v.Category = r.Category
		if r.MonthEnd {
			v.Detail = fmt.Sprintf("month-end timing difference on account %s", t.AccountCode)
		} else {
			v.Detail = fmt.Sprintf("description matched %s pattern", r.Category)
		}
		break
	}
	return v
}

func summarize(variances []*domain.Variance, ts *ThresholdSet) []*domain.VarianceSummary {
	byAccount := map[string]*domain.VarianceSummary{}
	for _, v := range variances {
		s, ok := byAccount[v.AccountCode]
		if !ok {
			threshold, defaulted := ts.For(v.AccountCode)
			s = &domain.VarianceSummary{
				AccountCode:      v.AccountCode,
				NetVariance:      decimal.Zero,
				Threshold:        threshold,
				ThresholdDefault: defaulted,
				ByCategory:       map[domain.VarianceCategory]decimal.Decimal{},
			}
			byAccount[v.AccountCode] = s
		}
		s.NetVariance = s.NetVariance.Add(v.Amount)
		s.ByCategory[v.Category] = s.ByCategory[v.Category].Add(v.Amount)
	}

	summaries := make([]*domain.VarianceSummary, 0, len(byAccount))
	for _, s := range byAccount {
		if s.NetVariance.Abs().GreaterThan(s.Threshold) {
			s.Flagged = true
			s.FlagReasons = append(s.FlagReasons,
				fmt.Sprintf("net variance %s exceeds threshold %s", s.NetVariance, s.Threshold))
		}

		cats := make([]domain.VarianceCategory, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
		for _, c := range cats {
			limit, ok := ts.CategoryFor(s.AccountCode, c)
			if !ok {
				continue
			}
			if total := s.ByCategory[c]; total.Abs().GreaterThan(limit) {
				s.Flagged = true
				s.FlagReasons = append(s.FlagReasons,
					fmt.Sprintf("%s total %s exceeds category threshold %s", c, total, limit))
			}
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].AccountCode < summaries[j].AccountCode })
	return summaries
}

// ===============================
// Carry-over entries
// ===============================

// CarryOvers builds the expected next-period reversals for month-end
// timing variances: one entry per account and category, dated the
// first day of the following month, with the aggregate amount negated.
func CarryOvers(unmatched []*domain.Transaction, variances []*domain.Variance) []*domain.CarryOverEntry {
	dates := make(map[int64]time.Time, len(unmatched))
	for _, t := range unmatched {
		dates[t.ID] = t.Day()
	}

	type key struct {
		account  string
		category domain.VarianceCategory
	}
	totals := map[key]decimal.Decimal{}
	latest := map[key]time.Time{}
	for _, v := range variances {
		if !v.Category.IsTiming() {
			continue
		}
		k := key{v.AccountCode, v.Category}
		totals[k] = totals[k].Add(v.Amount)
		if d := dates[v.TxnID]; d.After(latest[k]) {
			latest[k] = d
		}
	}

	entries := make([]*domain.CarryOverEntry, 0, len(totals))
	for k, total := range totals {
		d := latest[k]
		nextPeriod := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		entries = append(entries, &domain.CarryOverEntry{
			AccountCode:  k.account,
			Category:     k.category,
			Amount:       total.Neg(),
			ExpectedDate: nextPeriod,
			Description:  fmt.Sprintf("expected reversal of %s timing difference", k.category),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AccountCode != entries[j].AccountCode {
			return entries[i].AccountCode < entries[j].AccountCode
		}
		return entries[i].Category < entries[j].Category
	})
	return entries
}
